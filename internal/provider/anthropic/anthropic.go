// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package anthropic implements provider.Provider on the Anthropic Messages API.
package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sigil-dev/wayfinder/internal/provider"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

const defaultMaxTokens = 2048

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

// Provider streams messages from the Anthropic API.
type Provider struct {
	*provider.HealthTracker

	client anthropicsdk.Client
}

// New creates a provider. The API key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, wferr.New(wferr.CodeProviderRequestInvalid, "anthropic: missing api_key in config")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	tracker, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}
	return &Provider{
		HealthTracker: tracker,
		client:        anthropicsdk.NewClient(opts...),
	}, nil
}

func (p *Provider) Name() string { return string(provider.ProviderAnthropic) }

func (p *Provider) Available(_ context.Context) bool { return p.IsHealthy() }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	events := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(events)
		p.stream(ctx, params, events)
	}()
	return events, nil
}

func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	if req.Model == "" {
		return anthropicsdk.MessageNewParams{}, wferr.New(wferr.CodeProviderRequestInvalid, "anthropic: model is required")
	}

	msgs := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case provider.MessageRoleUser:
			msgs = append(msgs, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		case provider.MessageRoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			return anthropicsdk.MessageNewParams{}, wferr.Errorf(wferr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", m.Role)
		}
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}
	return params, nil
}

func (p *Provider) stream(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			if in := event.Message.Usage.InputTokens; in > 0 {
				ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: int(in)}}
			}
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}
			}
		case "message_delta":
			// output_tokens here is the cumulative total for the message.
			ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{OutputTokens: int(event.Usage.OutputTokens)}}
		case "message_stop":
			ch <- provider.ChatEvent{Type: provider.EventTypeDone}
			return
		}
	}

	if err := stream.Err(); err != nil {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
		return
	}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
