// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package planner

import (
	"os"
	"strings"
	"text/template"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// DefaultSeedPrompt extracts the starting cities and people from the seed
// document. Template data: SeedData.
const DefaultSeedPrompt = `You read a note about a missing person and extract the starting points for a search.
List every city and every person mentioned in the note.
Write each name in its basic (nominative) form, in capital letters, without diacritics.
People are listed by first name only.

Reply with YAML only, in exactly this shape and with no other text:
cities:
  - CITY
people:
  - NAME

<note>
{{.Document}}
</note>
`

// DefaultPlanPrompt asks which entities to query next. Template data: PlanData.
const DefaultPlanPrompt = `We are looking for the city where {{.Question}} is now.
A relation oracle tells us, for a city, which people were seen there, and for a person, which cities they visited.
{{- if .Document}}

Background note:
<note>
{{.Document}}
</note>
{{- end}}

What we know so far (one line per entity; an empty relation means the oracle gave no data):
<relations>
{{.Relations}}</relations>

Already queried: {{.Visited}}
{{- if .Notes}}

Your earlier notes: {{.Notes}}
{{- end}}

Propose the cities and people to query next. Only propose names that appear in the relations above and have not been queried yet.
Write each name in capital letters, without diacritics, people by first name only.

Reply with YAML only, in exactly this shape and with no other text:
summary: one sentence on what you learned
cities:
  - CITY
people:
  - NAME
`

// SeedData is the template data for the seed prompt.
type SeedData struct {
	Document string
}

// PlanData is the template data for the plan prompt.
type PlanData struct {
	Question  string
	Document  string
	Relations string
	Visited   string
	Notes     string
}

func parseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, wferr.Wrap(err, wferr.CodePlannerTemplateInvalid, "parsing "+name+" prompt template")
	}
	return t, nil
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", wferr.Wrap(err, wferr.CodePlannerTemplateInvalid, "rendering "+t.Name()+" prompt")
	}
	return sb.String(), nil
}

// LoadPrompt reads a prompt template override from path. An empty path
// returns def.
func LoadPrompt(path, def string) (string, error) {
	if path == "" {
		return def, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", wferr.Wrap(err, wferr.CodePlannerTemplateInvalid, "reading prompt template", wferr.Field("path", path))
	}
	return string(b), nil
}
