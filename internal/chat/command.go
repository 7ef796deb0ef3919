// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandClient invokes a local command line assistant as a subprocess. The
// conversation is flattened into a single prompt argument.
type CommandClient struct {
	Argv        []string
	Timeout     time.Duration
	CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Complete runs the command and returns its trimmed stdout.
func (c *CommandClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(c.Argv) == 0 {
		return "", fmt.Errorf("chat: no command configured")
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, c.Argv[1:]...), flatten(messages))

	cmdFn := c.CommandFunc
	if cmdFn == nil {
		cmdFn = exec.CommandContext
	}
	cmd := cmdFn(ctx, c.Argv[0], args...)
	cmd.Env = filterEnv(os.Environ())

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("chat: command timed out after %v", timeout)
		}
		return "", fmt.Errorf("chat: command failed: %w", err)
	}

	result := strings.TrimSpace(string(out))
	if result == "" {
		return "", ErrEmptyResponse
	}
	return result, nil
}

// flatten renders a conversation as plain text, the system prompt first.
func flatten(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		parts = append(parts, m.Role+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// filterEnv strips codebook's own settings and API keys from the child
// environment.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if strings.HasPrefix(e, "CODEBOOK_") || strings.HasPrefix(e, "OPENAI_") || strings.HasPrefix(e, "GEMINI_API_KEY=") {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}
