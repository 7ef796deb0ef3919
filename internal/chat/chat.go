// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package chat sends a conversation built from chat cells to a completion
// provider and splits the reply into new notebook cells.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SystemPrompt opens every conversation.
const SystemPrompt = "You are a helpful bot named codebook, that generates concise code blocks to solve programming problems"

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("chat: empty response")

// StatusError is a non-2xx reply from an HTTP provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat: unexpected status %d: %s", e.Code, e.Body)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer returns the assistant's reply to a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Conversation turns the chat cells at or before the active one into user
// messages after the system prompt.
func Conversation(prompts []string) []Message {
	msgs := []Message{{Role: RoleSystem, Content: SystemPrompt}}
	for _, p := range prompts {
		msgs = append(msgs, Message{Role: RoleUser, Content: p})
	}
	return msgs
}

// Languages are the fence tags that address the assistant rather than a
// toolchain.
var Languages = []string{"openai", "chat", "gemini", "llm"}

// IsChatLanguage reports whether a cell of language lang goes to the
// assistant.
func IsChatLanguage(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Options selects and configures a provider.
type Options struct {
	// Provider is "openai" (any OpenAI-compatible endpoint), "gemini" or
	// "command". Empty selects openai.
	Provider string
	Model    string
	URL      string
	APIKey   string
	OrgID    string
	Timeout  time.Duration
	// Command is the argv of the command provider; the prompt is appended.
	Command []string
}

// New builds the provider named by opts.
func New(ctx context.Context, opts Options, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(opts.Provider) {
	case "", "openai":
		return &OpenAIClient{
			URL:     opts.URL,
			APIKey:  opts.APIKey,
			OrgID:   opts.OrgID,
			Model:   opts.Model,
			Timeout: opts.Timeout,
			Logger:  logger,
		}, nil
	case "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model, logger)
	case "command":
		if len(opts.Command) == 0 {
			return nil, errors.New("chat: command provider needs a command")
		}
		return &CommandClient{Argv: opts.Command, Timeout: opts.Timeout}, nil
	default:
		return nil, fmt.Errorf("chat: unknown provider %q", opts.Provider)
	}
}
