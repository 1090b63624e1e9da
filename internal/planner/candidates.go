// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package planner

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/normalize"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// Candidates is the planner's answer: entities worth asking the relation
// oracle about. Absent lists decode as empty.
type Candidates struct {
	Cities []string
	People []string
	// Summary is optional free text the model may add about its reasoning.
	Summary string
}

// Entities returns typed entities, places first, dropping blanks and
// duplicates by normalized name.
func (c Candidates) Entities() []graph.Entity {
	seen := make(map[string]struct{}, len(c.Cities)+len(c.People))
	out := make([]graph.Entity, 0, len(c.Cities)+len(c.People))

	add := func(names []string, kind graph.Kind) {
		for _, name := range names {
			e := graph.NewEntity(name, kind)
			key := e.Key()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}
	add(c.Cities, graph.KindPlace)
	add(c.People, graph.KindPerson)
	return out
}

// Empty reports whether no entity was proposed.
func (c Candidates) Empty() bool {
	return len(c.Entities()) == 0
}

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fenced     = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n(.*?)```")
)

// nameList accepts a YAML sequence of scalars, a single scalar, or null.
type nameList []string

func (l *nameList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || strings.TrimSpace(node.Value) == "" {
			*l = nil
			return nil
		}
		*l = nameList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(nameList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return wferr.Errorf(wferr.CodePlannerParseInvalid, "line %d: list entries must be names", item.Line)
			}
			if v := strings.TrimSpace(item.Value); v != "" && item.Tag != "!!null" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	default:
		return wferr.Errorf(wferr.CodePlannerParseInvalid, "line %d: expected a list of names", node.Line)
	}
}

type wireCandidates struct {
	Cities  nameList `yaml:"cities"`
	People  nameList `yaml:"people"`
	Summary string   `yaml:"summary"`
}

// Parse decodes a planner reply. Markdown fences and <think> blocks are
// stripped; a top-level list uses its first element.
func Parse(text string) (Candidates, error) {
	body := strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
	if m := fenced.FindStringSubmatch(body); m != nil {
		body = m[1]
	} else if strings.HasPrefix(body, "```") {
		// Unterminated fence: drop the opening line.
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			body = body[i+1:]
		} else {
			body = ""
		}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Candidates{}, wferr.New(wferr.CodePlannerResponseEmpty, "planner reply is empty")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return Candidates{}, wferr.Errorf(wferr.CodePlannerParseInvalid, "decoding planner reply: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Candidates{}, wferr.New(wferr.CodePlannerParseInvalid, "planner reply holds no YAML document")
	}

	node := doc.Content[0]
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) == 0 {
			return Candidates{}, wferr.New(wferr.CodePlannerParseInvalid, "planner reply is an empty list")
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return Candidates{}, wferr.New(wferr.CodePlannerParseInvalid, "planner reply is not a mapping")
	}

	var wire wireCandidates
	if err := node.Decode(&wire); err != nil {
		if wferr.CodeOf(err) == "" {
			err = wferr.Errorf(wferr.CodePlannerParseInvalid, "decoding planner reply: %w", err)
		}
		return Candidates{}, err
	}

	return Candidates{
		Cities:  nonNil(wire.Cities),
		People:  nonNil(wire.People),
		Summary: strings.TrimSpace(wire.Summary),
	}, nil
}

func nonNil(l nameList) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

// RenderRelations writes one line per node in the form the prompts expect:
// "NAME relations: 'text'" for known associations, "NAME relations:" otherwise.
func RenderRelations(nodes []graph.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(normalize.Query(n.Entity.Name))
		sb.WriteString(" relations:")
		if n.Association.Known {
			sb.WriteString(" '")
			sb.WriteString(n.Association.Text)
			sb.WriteString("'")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
