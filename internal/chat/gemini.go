// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient is a thin wrapper around the genai client.
type GeminiClient struct {
	cli    *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient connects to the Gemini API. An empty apiKey lets the
// genai client read GEMINI_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model, logger: logger}, nil
}

// Complete sends system messages as the system instruction and the rest as
// the conversation.
func (g *GeminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, contents := geminiContents(messages)
	if len(contents) == 0 {
		return "", errors.New("chat: no user message")
	}
	cfg := &genai.GenerateContentConfig{}
	if system != nil {
		cfg.SystemInstruction = system
	}

	g.logger.Info("chat request",
		zap.String("provider", "gemini"),
		zap.String("model", g.model),
		zap.Int("messages", len(messages)))

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("chat: gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func geminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}
