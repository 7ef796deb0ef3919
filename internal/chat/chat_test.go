// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/marcelocantos/codebook/internal/notebook"
)

func TestOpenAIComplete(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := &OpenAIClient{URL: srv.URL, APIKey: "sk-test", OrgID: "org-1", Model: "m1"}
	reply, err := c.Complete(context.Background(), Conversation([]string{"write a loop"}))
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	assert.Equal(t, "m1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, Message{Role: RoleUser, Content: "write a loop"}, got.Messages[1])
}

func TestOpenAIDefaults(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("OpenAI-Organization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	_, err := (&OpenAIClient{URL: srv.URL}).Complete(context.Background(), Conversation(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := (&OpenAIClient{URL: srv.URL}).Complete(context.Background(), Conversation([]string{"hi"}))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "bad key", se.Body)
}

func TestOpenAIEmptyResponse(t *testing.T) {
	for _, body := range []string{`{"choices":[]}`, `{"choices":[{"message":{"content":"  "}}]}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := (&OpenAIClient{URL: srv.URL}).Complete(context.Background(), Conversation([]string{"hi"}))
		srv.Close()
		assert.ErrorIs(t, err, ErrEmptyResponse, body)
	}
}

func TestOpenAIContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := &OpenAIClient{URL: srv.URL, Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), Conversation([]string{"hi"}))
	assert.Error(t, err)
}

func TestSplitResponse(t *testing.T) {
	reply := "Here is a loop:\n\n```rs\nfor i in 0..3 {\n    println!(\"{}\", i);\n}\n```\n\nAnd in Python:\n```python\nfor i in range(3):\n    print(i)\n```\n"
	blocks := SplitResponse(reply)
	require.Len(t, blocks, 4)

	assert.Equal(t, notebook.Markup, blocks[0].Kind)
	assert.Equal(t, "Here is a loop:", blocks[0].Content)
	assert.Equal(t, "markdown", blocks[0].Language)

	assert.Equal(t, notebook.Code, blocks[1].Kind)
	assert.Equal(t, "rust", blocks[1].Language)
	assert.Equal(t, "for i in 0..3 {\n    println!(\"{}\", i);\n}", blocks[1].Content)

	assert.Equal(t, "And in Python:", blocks[2].Content)
	assert.Equal(t, "python", blocks[3].Language)
	assert.Equal(t, "for i in range(3):\n    print(i)", blocks[3].Content)
}

func TestSplitResponseUntaggedFence(t *testing.T) {
	blocks := SplitResponse("```\nplain\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, notebook.Markup, blocks[0].Kind)
	assert.Equal(t, "plain", blocks[0].Content)

	assert.Empty(t, SplitResponse(""))
}

func TestIsChatLanguage(t *testing.T) {
	assert.True(t, IsChatLanguage("openai"))
	assert.True(t, IsChatLanguage(" Gemini "))
	assert.False(t, IsChatLanguage("python"))
}

func TestGeminiContents(t *testing.T) {
	msgs := append(Conversation([]string{"a"}), Message{Role: RoleAssistant, Content: "b"}, Message{Role: RoleUser, Content: "c"})
	system, contents := geminiContents(msgs)
	require.NotNil(t, system)
	assert.Equal(t, SystemPrompt, system.Parts[0].Text)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "c", contents[2].Parts[0].Text)

	system, _ = geminiContents([]Message{{Role: RoleUser, Content: "x"}})
	assert.Nil(t, system)
}

func TestNewProvider(t *testing.T) {
	c, err := New(context.Background(), Options{APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = New(context.Background(), Options{Provider: "command", Command: []string{"llm", "-m", "x"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"llm", "-m", "x"}, c.(*CommandClient).Argv)

	_, err = New(context.Background(), Options{Provider: "command"}, nil)
	assert.Error(t, err)
	_, err = New(context.Background(), Options{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestFilterEnv(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "strips codebook and key vars",
			input: []string{"CODEBOOK_TEMP_PATH=/tmp/x", "HOME=/home/user", "OPENAI_API_KEY=sk", "GEMINI_API_KEY=g"},
			want:  []string{"HOME=/home/user"},
		},
		{
			name:  "preserves others",
			input: []string{"PATH=/usr/bin", "GEMINI_MODEL=x"},
			want:  []string{"PATH=/usr/bin", "GEMINI_MODEL=x"},
		},
		{
			name:  "empty input",
			input: []string{},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterEnv(tt.input))
		})
	}
}

func TestCommandArgs(t *testing.T) {
	var gotArgs []string
	c := &CommandClient{
		Argv: []string{"llm", "-m", "small"},
		CommandFunc: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			gotArgs = append([]string{name}, args...)
			return exec.CommandContext(ctx, "echo", "ok")
		},
	}
	_, _ = c.Complete(context.Background(), Conversation([]string{"hello"}))
	require.Len(t, gotArgs, 4)
	assert.Equal(t, []string{"llm", "-m", "small"}, gotArgs[:3])
	assert.True(t, strings.HasPrefix(gotArgs[3], SystemPrompt))
	assert.True(t, strings.HasSuffix(gotArgs[3], "user: hello"))
}

func TestCommandComplete(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	tests := []struct {
		name    string
		argv    []string
		want    string
		wantErr error
	}{
		{name: "success", argv: []string{"echo", "  canned  "}, want: "canned"},
		{name: "empty", argv: []string{"true"}, wantErr: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &CommandClient{
				Argv: tt.argv,
				CommandFunc: func(ctx context.Context, name string, args ...string) *exec.Cmd {
					return exec.CommandContext(ctx, name, tt.argv[1:]...)
				},
			}
			got, err := c.Complete(context.Background(), Conversation([]string{"x"}))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandFailure(t *testing.T) {
	c := &CommandClient{Argv: []string{"false"}}
	_, err := c.Complete(context.Background(), Conversation([]string{"x"}))
	assert.Error(t, err)

	c = &CommandClient{
		Argv:    []string{"sleep", "10"},
		Timeout: 50 * time.Millisecond,
		CommandFunc: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sleep", "10")
		},
	}
	_, err = c.Complete(context.Background(), Conversation([]string{"x"}))
	assert.ErrorContains(t, err, "timed out")
}
