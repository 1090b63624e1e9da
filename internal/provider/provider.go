// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package provider abstracts the LLM backends the planner talks to.
package provider

import (
	"context"
	"strings"

	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
	"github.com/sigil-dev/wayfinder/pkg/health"
)

// Provider is the interface implemented by every LLM backend.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Close() error
}

// HealthReporter is implemented by providers that track their own health.
type HealthReporter interface {
	HealthMetrics() health.Metrics
	RecordSuccess()
	RecordFailure()
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains model configuration. A nil Temperature leaves the
// provider default in place.
type ChatOptions struct {
	Temperature *float32
	MaxTokens   int
}

// Message is one conversation turn.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is the drained result of a chat stream.
type Completion struct {
	Text     string
	Usage    Usage
	Provider string
	Model    string
}

// Drain reads events until the stream closes and concatenates the text.
// An error event fails the whole completion.
func Drain(ctx context.Context, events <-chan ChatEvent) (Completion, error) {
	var (
		out Completion
		sb  strings.Builder
	)
	for {
		select {
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				out.Text = sb.String()
				return out, nil
			}
			switch ev.Type {
			case EventTypeTextDelta:
				sb.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					out.Usage.InputTokens += ev.Usage.InputTokens
					out.Usage.OutputTokens += ev.Usage.OutputTokens
				}
			case EventTypeError:
				return Completion{}, wferr.New(wferr.CodeProviderUpstreamFailure, ev.Error)
			}
		}
	}
}
