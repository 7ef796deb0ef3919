// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultOpenAIURL is the chat completions endpoint used when URL is empty.
const DefaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// DefaultOpenAIModel is used when Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
	OrgID      string
	Model      string
	Timeout    time.Duration
	Logger     *zap.Logger
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete posts the conversation and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.URL
	if url == "" {
		url = DefaultOpenAIURL
	}
	model := c.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	body, err := json.Marshal(completionRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.OrgID != "" {
		req.Header.Set("OpenAI-Organization", c.OrgID)
	}

	if c.Logger != nil {
		c.Logger.Info("chat request",
			zap.String("provider", "openai"),
			zap.String("model", model),
			zap.Int("messages", len(messages)))
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		const max = 2048
		b, _ := io.ReadAll(io.LimitReader(resp.Body, max))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
