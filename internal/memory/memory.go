// Package memory keeps a bounded, per-session log of chat messages.
//
// Each session is a list in a SessionStore holding JSON encoded messages,
// oldest first. Every write appends and trims in one atomic store call, so a
// session never holds more than MaxMessages entries once a write returns,
// regardless of concurrent writers.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"convrag/internal/domain"
	"convrag/internal/observability"
)

// SessionStore is an ordered, list-like keyed store.
type SessionStore interface {
	// PushTrim appends items to the end of the list at key and then keeps only
	// the last max entries, as a single atomic operation.
	PushTrim(ctx context.Context, key string, items []string, max int64) error
	// Range returns the entries between start and stop inclusive. Negative
	// indexes count from the end, -1 being the last entry.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	Delete(ctx context.Context, key string) error
}

const DefaultKeyPrefix = "chat:"

// Memory is the conversation log for all sessions.
type Memory struct {
	store       SessionStore
	maxTurns    int
	maxMessages int64
	keyPrefix   string
	logger      observability.Logger
}

// Option customizes a Memory.
type Option func(*Memory)

// WithKeyPrefix changes the prefix of session keys (default "chat:").
func WithKeyPrefix(prefix string) Option {
	return func(m *Memory) { m.keyPrefix = prefix }
}

// WithLogger sets the logger used to report skipped entries.
func WithLogger(l observability.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

// New creates a Memory keeping the last maxTurns user/assistant pairs per
// session. At least one pair is always kept.
func New(store SessionStore, maxTurns int, opts ...Option) *Memory {
	maxMessages := int64(2 * maxTurns)
	if maxMessages < 2 {
		maxMessages = 2
	}
	m := &Memory{
		store:       store,
		maxTurns:    maxTurns,
		maxMessages: maxMessages,
		keyPrefix:   DefaultKeyPrefix,
		logger:      observability.NoopLogger{},
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.WithPrefix("memory")
	return m
}

// MaxMessages is the per-session capacity.
func (m *Memory) MaxMessages() int { return int(m.maxMessages) }

// Append adds one message to the session log.
func (m *Memory) Append(ctx context.Context, sessionID string, role domain.Role, content string) error {
	return m.AppendBatch(ctx, sessionID, []domain.ChatMessage{{Role: role, Content: content}})
}

// AppendBatch adds messages in order and trims once afterwards. An empty
// batch does nothing.
func (m *Memory) AppendBatch(ctx context.Context, sessionID string, messages []domain.ChatMessage) error {
	if err := checkSession(sessionID); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	items := make([]string, len(messages))
	for i, msg := range messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidArgument, msg.Role)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		items[i] = string(data)
	}
	if err := m.store.PushTrim(ctx, m.key(sessionID), items, m.maxMessages); err != nil {
		return fmt.Errorf("append to session %s: %w", sessionID, err)
	}
	return nil
}

// History returns the whole bounded log, oldest first. Entries that cannot be
// decoded are skipped.
func (m *Memory) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}
	raw, err := m.store.Range(ctx, m.key(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	return m.parse(sessionID, raw), nil
}

// LastN returns the most recent n messages, oldest first. n <= 0 yields an
// empty slice.
func (m *Memory) LastN(ctx context.Context, sessionID string, n int) ([]domain.ChatMessage, error) {
	if n <= 0 {
		return []domain.ChatMessage{}, nil
	}
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}
	raw, err := m.store.Range(ctx, m.key(sessionID), -int64(n), -1)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	return m.parse(sessionID, raw), nil
}

// Clear deletes the session log.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	if err := checkSession(sessionID); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, m.key(sessionID)); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

func (m *Memory) key(sessionID string) string {
	return m.keyPrefix + sessionID + ":history"
}

type storedMessage struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

func (m *Memory) parse(sessionID string, raw []string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(raw))
	for i, item := range raw {
		var sm storedMessage
		if err := json.Unmarshal([]byte(item), &sm); err != nil || sm.Role == nil || sm.Content == nil || !domain.Role(*sm.Role).Valid() {
			m.logger.Debug("Skipping malformed history entry", map[string]interface{}{
				"session_id": sessionID,
				"position":   i,
			})
			continue
		}
		out = append(out, domain.ChatMessage{Role: domain.Role(*sm.Role), Content: *sm.Content})
	}
	return out
}

func checkSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: empty session id", domain.ErrInvalidArgument)
	}
	return nil
}
