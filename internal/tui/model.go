package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"convrag/internal/domain"
	"convrag/internal/service"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Ask(ctx context.Context, req service.AskRequest) (*domain.Answer, error)
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	service     ChatPort
	sessionID   string
	topK        int
	timeout     time.Duration
	input       textinput.Model
	viewport    viewport.Model
	transcript  []domain.ChatMessage
	chunks      []string
	lastQuery   string
	showContext bool
	waiting     bool
	status      string
	ready       bool
}

// Options configures a chat session.
type Options struct {
	SessionID string
	TopK      int
	// Timeout bounds each backend call; zero means no limit.
	Timeout time.Duration
}

type historyMsg struct{ messages []domain.ChatMessage }

type answerMsg struct {
	query  string
	answer *domain.Answer
}

type clearedMsg struct{}

type errMsg struct{ err error }

// New creates a new TUI model instance.
func New(svc ChatPort, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:   svc,
		sessionID: opts.SessionID,
		topK:      opts.TopK,
		timeout:   opts.Timeout,
		input:     ti,
		viewport:  vp,
		status:    fmt.Sprintf("Session %s. Tab toggles context, Ctrl+L clears history.", opts.SessionID),
	}
}

// Init loads the stored history of the session.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.loadHistory()) }

// Update handles key, window and backend events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case historyMsg:
		m.transcript = msg.messages
		m.refresh()
		return m, nil
	case answerMsg:
		m.waiting = false
		m.transcript = append(m.transcript, domain.ChatMessage{Role: domain.RoleAssistant, Content: msg.answer.Answer})
		m.chunks = msg.answer.ContextChunks
		m.lastQuery = msg.query
		m.status = fmt.Sprintf("Answered from %d context chunks", len(m.chunks))
		m.refresh()
		return m, nil
	case clearedMsg:
		m.transcript = nil
		m.chunks = nil
		m.status = "History cleared"
		m.refresh()
		return m, nil
	case errMsg:
		if m.waiting {
			// The failed turn was not stored; drop it from the view too.
			m.waiting = false
			if n := len(m.transcript); n > 0 && m.transcript[n-1].Role == domain.RoleUser {
				m.transcript = m.transcript[:n-1]
			}
		}
		m.status = "Error: " + msg.err.Error()
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.SetValue("")
			m.waiting = true
			m.transcript = append(m.transcript, domain.ChatMessage{Role: domain.RoleUser, Content: q})
			m.status = "Thinking..."
			m.refresh()
			return m, m.ask(q)
		case "tab":
			m.showContext = !m.showContext
			m.refresh()
			return m, nil
		case "ctrl+l":
			if m.waiting {
				return m, nil
			}
			return m, m.clearHistory()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Conversational RAG")
	body := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	if m.showContext {
		m.viewport.SetContent(m.renderContext())
	} else {
		m.viewport.SetContent(m.renderTranscript())
	}
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for i, msg := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		style := assistantStyle
		if msg.Role == domain.RoleUser {
			style = userStyle
		}
		b.WriteString(style.Render(string(msg.Role) + ":"))
		b.WriteString(" ")
		b.WriteString(msg.Content)
	}
	return b.String()
}

func (m Model) renderContext() string {
	if len(m.chunks) == 0 {
		return "No context retrieved yet."
	}
	parts := make([]string, len(m.chunks))
	for i, c := range m.chunks {
		title := fmt.Sprintf("Chunk %d/%d", i+1, len(m.chunks))
		parts[i] = title + "\n" + highlightBestSentence(c, m.lastQuery)
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) ask(query string) tea.Cmd {
	svc, sid, topK := m.service, m.sessionID, m.topK
	ctx, cancel := m.callContext()
	return func() tea.Msg {
		defer cancel()
		ans, err := svc.Ask(ctx, service.AskRequest{SessionID: sid, Query: query, TopK: topK})
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{query: query, answer: ans}
	}
}

func (m Model) loadHistory() tea.Cmd {
	svc, sid := m.service, m.sessionID
	ctx, cancel := m.callContext()
	return func() tea.Msg {
		defer cancel()
		msgs, err := svc.History(ctx, sid)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg{msgs}
	}
}

func (m Model) clearHistory() tea.Cmd {
	svc, sid := m.service, m.sessionID
	ctx, cancel := m.callContext()
	return func() tea.Msg {
		defer cancel()
		if err := svc.ClearHistory(ctx, sid); err != nil {
			return errMsg{err}
		}
		return clearedMsg{}
	}
}

func (m Model) callContext() (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(context.Background(), m.timeout)
	}
	return context.WithCancel(context.Background())
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
