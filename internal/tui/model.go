package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notebookrag/internal/service"
	"notebookrag/internal/session"
)

// RAGPort is the TUI-facing subset of the retrieval service.
type RAGPort interface {
	Generate(ctx context.Context, s *session.Session, task service.Task, topK int) (service.Response, error)
}

// answerMsg carries a finished generation back into Update.
type answerMsg struct {
	query string
	resp  service.Response
	err   error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   RAGPort
	session   *session.Session
	topK      int
	modes     []string
	mode      int
	input     textinput.Model
	viewport  viewport.Model
	response  *service.Response
	summary   string
	status    string
	cursor    int
	busy      bool
	ready     bool
	lastQuery string
}

// New creates a new TUI model bound to one ingested session.
func New(svc RAGPort, s *session.Session, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter (Tab switches mode)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  svc,
		session:  s,
		topK:     topK,
		modes:    service.Modes(),
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Type a question, or pick a mode and press Enter.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.response = nil
		} else {
			m.status = fmt.Sprintf("%s: %d citations", msg.resp.Mode, len(msg.resp.Citations))
			m.response = &msg.resp
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			task, err := service.ParseTask(m.modes[m.mode], m.input.Value())
			if err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Working on %s...", task.Mode())
			return m, m.generate(task)
		case "tab":
			m.mode = (m.mode + 1) % len(m.modes)
			m.status = "Mode: " + m.modes[m.mode]
			return m, nil
		case "down":
			if n := m.citationCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := m.citationCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) generate(task service.Task) tea.Cmd {
	svc, s, topK := m.service, m.session, m.topK
	return func() tea.Msg {
		resp, err := svc.Generate(context.Background(), s, task, topK)
		return answerMsg{query: task.Query(), resp: resp, err: err}
	}
}

func (m Model) citationCount() int {
	if m.response == nil {
		return 0
	}
	return len(m.response.Citations)
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("notebookrag") + "  " + m.renderModes()
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderModes() string {
	parts := make([]string, len(m.modes))
	for i, name := range m.modes {
		if i == m.mode {
			parts[i] = activeModeStyle.Render(name)
		} else {
			parts[i] = modeStyle.Render(name)
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderCurrentResult() string {
	if m.response == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(m.response.Answer)
	if n := len(m.response.Citations); n > 0 {
		c := m.response.Citations[m.cursor]
		fmt.Fprintf(&b, "\n\nCitation %d/%d  %s p.%d  chunk %d\n\n", m.cursor+1, n, c.Source, c.Page, c.ChunkID)
		b.WriteString(highlightBestSentence(c.Highlight, m.lastQuery))
	}
	return b.String()
}

var (
	resultBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	modeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeModeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Underline(true)
	unicodeWordRe   = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe      = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
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
