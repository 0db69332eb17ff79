package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrag/internal/domain"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestChat_GenerateSendsPromptInOrder(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "Paris."},
			}},
		})
	}))
	defer srv.Close()

	temp := float32(0.2)
	c, err := NewChat(Config{BaseURL: srv.URL, APIKey: "k", Model: "test-model", Temperature: &temp})
	require.NoError(t, err)

	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}
	answer, err := c.Generate(context.Background(), "capital of France?", []string{"France: Paris", "Spain: Madrid"}, history)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)

	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "Context:\nFrance: Paris\n\nSpain: Madrid\n\n---\n\nQuery: capital of France?", got.Messages[3].Content)
}

func TestChat_ErrorsAreWrapped(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := NewChat(Config{BaseURL: srv.URL, APIKey: "k"})
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), "q", nil, nil)
			assert.ErrorIs(t, err, domain.ErrGeneration)
		})
	}
}

func TestBuildMessages_NoHistory(t *testing.T) {
	msgs := BuildMessages("q", nil, nil)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Context:\n\n\n---\n\nQuery: q", msgs[1].Content)
}

func TestBuildMessages_SkipsToolEntries(t *testing.T) {
	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "weather?"},
		{Role: domain.RoleTool, Content: `{"temp":21}`},
		{Role: domain.RoleAssistant, Content: "21 degrees"},
		{Role: domain.RoleSystem, Content: "be brief"},
	}
	msgs := BuildMessages("and tomorrow?", []string{"ctx"}, history)
	require.Len(t, msgs, 5)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
		assert.Empty(t, m.ToolCallID)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "system", "user"}, roles)
	assert.Equal(t, "21 degrees", msgs[2].Content)
}

func TestNewChat_Defaults(t *testing.T) {
	c, err := NewChat(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", c.Model())

	t.Setenv("CONVRAG_TEST_EMPTY_KEY", "")
	_, err = NewChat(Config{APIKeyEnv: "CONVRAG_TEST_EMPTY_KEY"})
	assert.Error(t, err)
}
