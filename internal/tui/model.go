package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"capcache/internal/domain"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase represents the current state of the TUI
type Phase int

const (
	PhaseSaving Phase = iota
	PhaseDone
	PhaseError
)

// Messages for the TUI
type (
	SaveProgressMsg struct {
		Written int64
		Total   int64
	}
	SaveDoneMsg struct {
		Result domain.SaveResult
	}
	ErrorMsg struct {
		Err error
	}
	tickMsg time.Time
)

// StartSaveFunc returns the command that performs the save and reports back
// with SaveDoneMsg or ErrorMsg.
type StartSaveFunc func() tea.Cmd

type Config struct {
	Source    string
	CacheDir  string
	StartSave StartSaveFunc
	// Cancel stops a running save. Quitting while saving waits for the save
	// to report back before the program exits.
	Cancel func()
}

type Model struct {
	config   Config
	Phase    Phase
	Result   domain.SaveResult
	Err      error
	Quitting   bool
	cancelling bool
	spinner  spinner.Model
	progress progress.Model
	written  int64
	total    int64
}

func NewModel(cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return Model{
		config:   cfg,
		Phase:    PhaseSaving,
		spinner:  s,
		progress: p,
		total:    -1,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tickCmd()}
	if m.config.StartSave != nil {
		cmds = append(cmds, m.config.StartSave())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-20, 60)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Phase == PhaseSaving && m.config.Cancel != nil {
				if !m.cancelling {
					m.cancelling = true
					m.config.Cancel()
				}
				return m, nil
			}
			m.Quitting = true
			return m, tea.Quit
		case "enter":
			if m.Phase == PhaseDone || m.Phase == PhaseError {
				return m, tea.Quit
			}
		}

	case SaveProgressMsg:
		m.written = msg.Written
		m.total = msg.Total
		return m, nil

	case SaveDoneMsg:
		m.Phase = PhaseDone
		m.Result = msg.Result
		m.written = msg.Result.Bytes
		cmd := m.quitIfCancelling()
		return m, cmd

	case ErrorMsg:
		m.Phase = PhaseError
		m.Err = msg.Err
		cmd := m.quitIfCancelling()
		return m, cmd

	case spinner.TickMsg:
		if m.Phase == PhaseSaving {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		if m.Phase == PhaseSaving {
			cmds := []tea.Cmd{tickCmd()}
			if m.total > 0 {
				cmds = append(cmds, m.progress.SetPercent(m.percent()))
			}
			return m, tea.Batch(cmds...)
		}
	}

	return m, nil
}

func (m *Model) quitIfCancelling() tea.Cmd {
	if !m.cancelling {
		return nil
	}
	m.Quitting = true
	return tea.Quit
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.written) / float64(m.total)
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.Phase {
	case PhaseSaving:
		b.WriteString(m.renderSaving())
	case PhaseDone:
		b.WriteString(m.renderDone())
	case PhaseError:
		b.WriteString(m.renderError())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(iconCapture+" capcache"),
		subtitleStyle.Render("Staging capture for upload"),
		"",
		dimStyle.Render(fmt.Sprintf("%s Source: %s", iconFolder, shortenPath(m.config.Source))),
		dimStyle.Render(fmt.Sprintf("%s Cache:  %s", iconFolder, shortenPath(m.config.CacheDir))),
	)
}

func (m Model) renderSaving() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Copying Capture"))
	b.WriteString("\n\n")
	label := "Copying..."
	if m.cancelling {
		label = "Cancelling..."
	}
	b.WriteString(fmt.Sprintf("  %s %s\n\n", m.spinner.View(), label))

	if m.total > 0 {
		b.WriteString(fmt.Sprintf("  %s\n", m.progress.ViewAs(m.percent())))
		b.WriteString(fmt.Sprintf("  %s %s\n",
			countStyle.Render(fmt.Sprintf("%d/%d bytes", m.written, m.total)),
			dimStyle.Render(fmt.Sprintf("(%.0f%%)", m.percent()*100)),
		))
	} else {
		b.WriteString(fmt.Sprintf("  %s\n", countStyle.Render(fmt.Sprintf("%d bytes", m.written))))
	}
	return b.String()
}

func (m Model) renderDone() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Capture Cached"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s %s\n\n", successStyle.Render(iconSuccess), successStyle.Render("Capture saved")))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Reference:"), refStyle.Render(m.Result.Ref.String())))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("File:"), dimStyle.Render(shortenPath(m.Result.Path))))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Size:"), dimStyle.Render(fmt.Sprintf("%d bytes", m.Result.Bytes))))
	return b.String()
}

func (m Model) renderError() string {
	msg := "unknown error"
	if m.Err != nil {
		msg = m.Err.Error()
	}
	return errorBoxStyle.Render(fmt.Sprintf("%s %s",
		errorStyle.Render(iconError),
		errorStyle.Render("Error: "+msg),
	))
}

func (m Model) renderHelp() string {
	var help string
	switch m.Phase {
	case PhaseSaving:
		help = "Copying capture... Press q to quit"
		if m.cancelling {
			help = "Cancelling, waiting for the copy to stop..."
		}
	case PhaseDone:
		help = "Press Enter to exit"
	case PhaseError:
		help = "Press Enter or q to exit"
	}
	return helpStyle.Render(help)
}

// shortenPath replaces the home directory prefix with ~ for display
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
