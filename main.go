package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"sqlchat/cmd"
	"sqlchat/internal/chat"
)

const logFileName = "sqlchat.log"

// setupLogger routes the default slog logger to a JSON log file in dataDir
func setupLogger(dataDir string, debug bool) error {
	logPath := filepath.Join(dataDir, logFileName)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     level,
		AddSource: true, // Include file:line information
	})

	slog.SetDefault(slog.New(handler))
	slog.Info("Application started", "data_dir", dataDir, "debug", debug)

	return nil
}

// renderMarkdown renders markdown content with glamour for terminal display
func renderMarkdown(content string, width int) (string, error) {
	// Account for borders, padding, and glamour's internal gutter
	const glamourGutter = 2
	const borderWidth = 4

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40 // Minimum width for readable content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	session       *chat.Session
	loop          *chat.Loop
	input         textinput.Model
	viewport      viewport.Model
	width         int
	height        int
	err           error
	thinking      bool
	status        string
	viewportReady bool
}

// answerMsg carries the outcome of one submitted question
type answerMsg struct {
	turn chat.Turn
	err  error
}

func submitQuestion(loop *chat.Loop, session *chat.Session, question string) tea.Cmd {
	return func() tea.Msg {
		turn, err := loop.Submit(context.Background(), session, question)
		return answerMsg{turn: turn, err: err}
	}
}

func initialModel(session *chat.Session, loop *chat.Loop) model {
	ti := textinput.New()
	ti.Placeholder = "Message SQL Chatbot..."
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 76

	return model{
		session:  session,
		loop:     loop,
		input:    ti,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4

		// Reserve lines for the title, the input, the status line and help
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.viewportReady = true
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case answerMsg:
		m.thinking = false
		m.err = msg.err
		if msg.err != nil {
			slog.Error("Question failed", "session_id", m.session.ID, "error", msg.err)
		}
		m.refreshTranscript()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		question := strings.TrimSpace(m.input.Value())
		if question == "" || m.thinking {
			return m, nil
		}
		m.input.SetValue("")
		m.thinking = true
		m.err = nil
		m.status = ""
		return m, submitQuestion(m.loop, m.session, question)

	case tea.KeyCtrlY:
		answer := lastAnswer(m.session.Transcript())
		if answer == "" {
			return m, nil
		}
		if err := clipboard.WriteAll(answer); err != nil {
			m.err = fmt.Errorf("copy failed: %w", err)
			return m, nil
		}
		m.status = "Copied the last answer to the clipboard"
		return m, nil

	case tea.KeyCtrlR:
		if m.thinking {
			return m, nil
		}
		m.session.Reset()
		m.err = nil
		m.status = "Conversation cleared"
		m.refreshTranscript()
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) refreshTranscript() {
	m.viewport.SetContent(m.transcriptContent())
	m.viewport.GotoBottom()
}

func (m model) transcriptContent() string {
	var b strings.Builder
	for _, t := range m.session.Transcript() {
		if t.Role == chat.RoleUser {
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(t.Content)
			b.WriteString("\n\n")
			continue
		}

		b.WriteString(botStyle.Render("Assistant"))
		b.WriteString("\n")
		for _, step := range t.Steps {
			b.WriteString(stepStyle.Render("> " + step))
			b.WriteString("\n")
		}
		rendered, err := renderMarkdown(t.Content, m.width)
		if err != nil {
			rendered = t.Content
		}
		b.WriteString(strings.TrimSpace(rendered))
		b.WriteString("\n")
		if t.Chart != nil {
			b.WriteString("\n")
			b.WriteString(RenderFigure(t.Chart, m.width))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("💬 Chat with SQL DB"))
	b.WriteString("  ")
	b.WriteString(helpStyle.Render(m.session.Selection().String()))
	b.WriteString("\n")

	if m.viewportReady {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.transcriptContent())
	}
	b.WriteString("\n")

	switch {
	case m.thinking:
		b.WriteString(statusStyle.Render("Thinking..."))
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: send • ctrl+y: copy answer • ctrl+r: clear • pgup/pgdn: scroll • esc: quit"))
	return b.String()
}

// lastAnswer returns the newest assistant turn that answers a question
func lastAnswer(turns []chat.Turn) string {
	for i := len(turns) - 1; i > 0; i-- {
		if turns[i].Role == chat.RoleAssistant {
			return turns[i].Content
		}
	}
	return ""
}

func launchTUI(app *cmd.App) error {
	session := chat.NewSession(uuid.NewString(), app.SessionOptions())
	defer session.Close()
	session.Enter(chatContextID)

	// Resolve the database up front so a bad URI fails before the UI starts
	handle, err := session.Handle(context.Background())
	if err != nil {
		return err
	}
	slog.Info("TUI started", "session_id", session.ID, "database", handle.String())

	p := tea.NewProgram(
		initialModel(session, app.NewLoop()),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()
	return err
}

func main() {
	// Set up cmd package callbacks
	cmd.LaunchTUI = launchTUI
	cmd.StartServer = StartServer
	cmd.SetupLogger = setupLogger
	cmd.RenderFigure = RenderFigure

	// Execute the CLI
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
