// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package planner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/planner"
	"github.com/sigil-dev/wayfinder/internal/provider"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns replies in order and records each request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []provider.ChatRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req provider.ChatRequest) (provider.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.err != nil {
		return provider.Completion{}, s.err
	}
	if len(s.replies) == 0 {
		return provider.Completion{Text: "cities: []"}, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return provider.Completion{Text: reply, Provider: "fake", Model: "m"}, nil
}

func TestExtractSeed(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"```yaml\ncities: [KRAKOW, WARSZAWA]\npeople: [BARBARA, ALEKSANDER]\n```"}}
	temp := float32(0)
	p, err := planner.New(llm, planner.Config{Model: "openai/gpt-4o-mini", Temperature: &temp})
	require.NoError(t, err)

	got, err := p.ExtractSeed(context.Background(), "Barbara left Kraków with Aleksander.")
	require.NoError(t, err)
	assert.Equal(t, []string{"KRAKOW", "WARSZAWA"}, got.Cities)
	assert.Equal(t, []string{"BARBARA", "ALEKSANDER"}, got.People)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "openai/gpt-4o-mini", req.Model)
	assert.Contains(t, req.SystemPrompt, "Barbara left Kraków with Aleksander.")
	require.NotNil(t, req.Options.Temperature)
	assert.Equal(t, provider.MessageRoleUser, req.Messages[0].Role)
}

func TestPlanRendersContext(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"- summary: go to Lodz\n  cities: [LODZ]\n  people: []\n"}}
	p, err := planner.New(llm, planner.Config{})
	require.NoError(t, err)

	got, err := p.Plan(context.Background(), planner.PlanRequest{
		Question: "BARBARA",
		Graph: []graph.Node{
			{Entity: graph.NewEntity("Kraków", graph.KindPlace), Association: graph.Known("RAFAL")},
			{Entity: graph.NewEntity("Rafał", graph.KindPerson), Association: graph.Known("LODZ")},
		},
		Visited: []string{"Krakow", "Rafal"},
		Notes:   "Rafal knows something",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"LODZ"}, got.Cities)
	assert.Equal(t, "go to Lodz", got.Summary)

	system := llm.requests[0].SystemPrompt
	assert.Contains(t, system, "the city where BARBARA is now")
	assert.Contains(t, system, "KRAKOW relations: 'RAFAL'\nRAFAL relations: 'LODZ'\n")
	assert.Contains(t, system, "Already queried: Krakow, Rafal")
	assert.Contains(t, system, "Your earlier notes: Rafal knows something")
	assert.NotContains(t, system, "Background note")
}

func TestPlanParseFailureIsReported(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"I am not sure."}}
	p, err := planner.New(llm, planner.Config{})
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), planner.PlanRequest{Question: "BARBARA"})
	assert.True(t, wferr.HasCode(err, wferr.CodePlannerParseInvalid))
}

func TestPlanUpstreamFailure(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	p, err := planner.New(llm, planner.Config{})
	require.NoError(t, err)

	_, err = p.ExtractSeed(context.Background(), "note")
	require.Error(t, err)
	assert.True(t, wferr.HasCode(err, wferr.CodePlannerUpstreamFailure))
}

func TestNewRejectsBadTemplate(t *testing.T) {
	_, err := planner.New(&scriptedLLM{}, planner.Config{PlanPrompt: "{{.Question"})
	assert.True(t, wferr.HasCode(err, wferr.CodePlannerTemplateInvalid))

	_, err = planner.New(nil, planner.Config{})
	assert.Error(t, err)
}

func TestCustomPromptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("NOTE={{.Document}}"), 0o600))

	text, err := planner.LoadPrompt(path, planner.DefaultSeedPrompt)
	require.NoError(t, err)

	llm := &scriptedLLM{replies: []string{"cities: [X]"}}
	p, err := planner.New(llm, planner.Config{SeedPrompt: text})
	require.NoError(t, err)

	_, err = p.ExtractSeed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "NOTE=hello", llm.requests[0].SystemPrompt)

	def, err := planner.LoadPrompt("", planner.DefaultPlanPrompt)
	require.NoError(t, err)
	assert.Equal(t, planner.DefaultPlanPrompt, def)

	_, err = planner.LoadPrompt(filepath.Join(t.TempDir(), "missing"), "")
	assert.True(t, wferr.HasCode(err, wferr.CodePlannerTemplateInvalid))
}
