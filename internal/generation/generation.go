// Package generation produces answers with an OpenAI-compatible chat model.
package generation

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"convrag/internal/domain"
)

const SystemPrompt = "You are a helpful assistant. Use the following context to answer the user's query. " +
	"If you don't know the answer, just say that you don't know. Don't try to make up an answer."

// Config configures the chat generator.
type Config struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Model     string
	// Temperature is sent only when set.
	Temperature *float32
	Timeout     time.Duration
}

// Chat implements domain.Generator using the chat completions API.
type Chat struct {
	client      *goopenai.Client
	model       string
	temperature *float32
}

// NewChat builds a generator from cfg.
func NewChat(cfg Config) (*Chat, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT3Dot5Turbo
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	oc := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: t}
	return &Chat{
		client:      goopenai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (c *Chat) Model() string { return c.model }

// Generate asks the model to answer query from the given context chunks and
// prior conversation.
func (c *Chat) Generate(ctx context.Context, query string, chunks []string, history []domain.ChatMessage) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: BuildMessages(query, chunks, history),
	}
	if c.temperature != nil {
		req.Temperature = *c.temperature
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}

// BuildMessages lays out the prompt: system instructions, the conversation so
// far, then a user turn carrying the retrieved context and the query. Tool
// entries are left out since chat completions only accept them as replies to
// a tool call.
func BuildMessages(query string, chunks []string, history []domain.ChatMessage) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt})
	for _, h := range history {
		if h.Role == domain.RoleTool {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: string(h.Role), Content: h.Content})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: UserPrompt(query, chunks),
	})
	return msgs
}

// UserPrompt joins the context chunks with blank lines ahead of the query.
func UserPrompt(query string, chunks []string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(chunks, "\n\n"))
	b.WriteString("\n\n---\n\nQuery: ")
	b.WriteString(query)
	return b.String()
}
