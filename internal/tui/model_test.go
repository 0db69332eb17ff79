package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrag/internal/domain"
	"convrag/internal/service"
)

type fakeChat struct {
	err     error
	asked   []service.AskRequest
	history []domain.ChatMessage
	cleared bool
}

func (f *fakeChat) Ask(_ context.Context, req service.AskRequest) (*domain.Answer, error) {
	f.asked = append(f.asked, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Answer: "answer to " + req.Query, ContextChunks: []string{"chunk one.", "chunk two."}}, nil
}

func (f *fakeChat) History(context.Context, string) ([]domain.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeChat) ClearHistory(context.Context, string) error {
	f.cleared = true
	return nil
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeQuery(t *testing.T, m Model, q string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(q)
	return step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_AskRoundTrip(t *testing.T) {
	fake := &fakeChat{}
	m := New(fake, Options{SessionID: "s1", TopK: 4})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m, cmd := typeQuery(t, m, "what is stored?")
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Equal(t, "", m.input.Value())
	require.Len(t, m.transcript, 1)

	m, _ = step(t, m, cmd())
	assert.False(t, m.waiting)
	require.Len(t, fake.asked, 1)
	assert.Equal(t, service.AskRequest{SessionID: "s1", Query: "what is stored?", TopK: 4}, fake.asked[0])
	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "what is stored?"},
		{Role: domain.RoleAssistant, Content: "answer to what is stored?"},
	}, m.transcript)
	assert.Equal(t, []string{"chunk one.", "chunk two."}, m.chunks)
	assert.Contains(t, m.View(), "Answered from 2 context chunks")
}

func TestModel_FailedAskDropsPendingTurn(t *testing.T) {
	fake := &fakeChat{err: errors.New("vector search failed")}
	m := New(fake, Options{SessionID: "s1"})

	m, cmd := typeQuery(t, m, "q")
	m, _ = step(t, m, cmd())
	assert.Empty(t, m.transcript)
	assert.False(t, m.waiting)
	assert.Contains(t, m.status, "vector search failed")
}

func TestModel_IgnoresEnterWhileWaiting(t *testing.T) {
	m := New(&fakeChat{}, Options{SessionID: "s1"})
	m, _ = typeQuery(t, m, "first")
	m, cmd := typeQuery(t, m, "second")
	assert.Nil(t, cmd)
	assert.Len(t, m.transcript, 1)
}

func TestModel_HistoryAndClear(t *testing.T) {
	fake := &fakeChat{history: []domain.ChatMessage{{Role: domain.RoleUser, Content: "old"}}}
	m := New(fake, Options{SessionID: "s1"})

	m, _ = step(t, m, m.loadHistory()())
	assert.Equal(t, fake.history, m.transcript)

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	assert.True(t, fake.cleared)
	assert.Empty(t, m.transcript)
}

func TestModel_ToggleContext(t *testing.T) {
	m := New(&fakeChat{}, Options{SessionID: "s1"})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.True(t, m.showContext)
	assert.Contains(t, m.View(), "No context retrieved yet.")
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Cats purr. Redis stores history.", "where is history")
	assert.Contains(t, out, "Cats purr.")
	assert.Contains(t, out, "Redis stores history.")
	assert.Equal(t, "", highlightBestSentence("", "q"))
}
