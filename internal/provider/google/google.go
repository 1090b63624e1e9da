// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google implements provider.Provider on the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sigil-dev/wayfinder/internal/provider"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

// Provider streams content from the Gemini API.
type Provider struct {
	*provider.HealthTracker

	client *genai.Client
}

// New creates a provider. The API key is required.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, wferr.New(wferr.CodeProviderRequestInvalid, "google: missing api_key in config", wferr.FieldProvider("google"))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, wferr.Wrapf(err, wferr.CodeProviderUpstreamFailure, "google: creating client")
	}

	tracker, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}
	return &Provider{HealthTracker: tracker, client: client}, nil
}

func (p *Provider) Name() string { return string(provider.ProviderGoogle) }

func (p *Provider) Available(_ context.Context) bool { return p.IsHealthy() }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	if req.Model == "" {
		return nil, wferr.New(wferr.CodeProviderRequestInvalid, "google: model is required")
	}
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)

	events := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(events)
		p.stream(ctx, req.Model, contents, config, events)
	}()
	return events, nil
}

func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	return cfg
}

func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role string
		switch m.Role {
		case provider.MessageRoleUser:
			role = genai.RoleUser
		case provider.MessageRoleAssistant:
			role = genai.RoleModel
		default:
			return nil, wferr.Errorf(wferr.CodeProviderRequestInvalid, "google: unsupported message role %q", m.Role)
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return out, nil
}

func (p *Provider) stream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig, ch chan<- provider.ChatEvent) {
	// Usage metadata is cumulative per chunk; only the last one is reported.
	var usage *genai.GenerateContentResponseUsageMetadata

	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
			return
		}
		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" && !part.Thought {
					ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}
				}
			}
		}
		if result.UsageMetadata != nil {
			usage = result.UsageMetadata
		}
	}

	if usage != nil {
		ch <- provider.ChatEvent{
			Type: provider.EventTypeUsage,
			Usage: &provider.Usage{
				InputTokens:  int(usage.PromptTokenCount),
				OutputTokens: int(usage.CandidatesTokenCount),
			},
		}
	}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
