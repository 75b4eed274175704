package main

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sova/assistant"
)

// TUI message types
type viewMsg assistant.View
type hideMsg struct{}
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSurface bridges the orchestrator to the bubbletea program.
type tuiSurface struct{}

func (tuiSurface) Update(v assistant.View) { tuiSend(viewMsg(v)) }
func (tuiSurface) Hide()                   { tuiSend(hideMsg{}) }

var (
	styleStatusIdle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleStatusListen = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleStatusThink  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleStatusSpeak  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleStatusErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	styleText         = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleTranscript   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	styleHelp         = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

type tuiModel struct {
	view          assistant.View
	visible       bool
	frame         int
	width, height int
	hotkeyLabel   string
	onCancel      func()
	onActivate    func()
}

func NewTUIProgram(hotkeyLabel string, onActivate, onCancel func()) *tea.Program {
	m := tuiModel{hotkeyLabel: hotkeyLabel, onActivate: onActivate, onCancel: onCancel}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.onCancel != nil {
				m.onCancel()
			}
		case "enter":
			if m.onActivate != nil {
				m.onActivate()
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case viewMsg:
		m.view = assistant.View(msg)
		m.visible = true

	case hideMsg:
		m.visible = false
		m.view = assistant.View{}
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	if !m.visible {
		return styleStatusIdle.Render("○ idle")
	}
	status := m.view.Status
	switch m.view.State {
	case assistant.StateCapturing:
		dots := strings.Repeat("·", m.frame%4)
		return styleStatusListen.Render("● " + status + dots)
	case assistant.StateThinking:
		dots := strings.Repeat("·", m.frame%4)
		return styleStatusThink.Render("◐ " + status + dots)
	case assistant.StateSpeaking, assistant.StateDone:
		return styleStatusSpeak.Render("◆ " + status)
	case assistant.StateCaptureFailed, assistant.StateInferenceFailed, assistant.StatePlaybackFailed:
		return styleStatusErr.Render("⚠ " + status)
	}
	return styleStatusIdle.Render(status)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	textWidth := m.width - 4
	if textWidth > 76 {
		textWidth = 76
	}
	wrap := lipgloss.NewStyle().Width(textWidth)

	var b strings.Builder
	b.WriteString("\n  " + m.statusLine() + "\n\n")

	if m.visible {
		// During thinking and speaking the transcript rides above the text.
		if m.view.State == assistant.StateThinking && m.view.Text != "" {
			b.WriteString(indent(wrap.Render(styleTranscript.Render("“"+m.view.Text+"”"))) + "\n\n")
		} else if m.view.Text != "" {
			b.WriteString(indent(wrap.Render(styleText.Render(m.view.Text))) + "\n\n")
		}
		if m.view.Err != nil {
			b.WriteString(indent(wrap.Render(styleStatusErr.Render(m.view.Err.Error()))) + "\n\n")
		}
	}

	help := styleHelpBold.Render(m.hotkeyLabel) + styleHelp.Render(" or enter to ask") +
		styleHelp.Render("  ·  esc dismiss  ·  q quit")
	b.WriteString("\n  " + help + "\n")
	b.WriteString("  " + styleHelp.Render("sova "+version) + "\n")

	return b.String()
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
