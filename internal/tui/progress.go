package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator/policy"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// StageStatus is the display state of one pipeline stage.
type StageStatus int

const (
	StagePending StageStatus = iota
	StageRunning
	StageDone
	StageFailed
)

// stageLabels names each stage the way the user thinks of it.
var stageLabels = map[orchestrator.State]string{
	orchestrator.StatePO:         "Product Owner",
	orchestrator.StateSpecialist: "Tech Lead / SecOps / QA",
	orchestrator.StateAggregate:  "Aggregate reviews",
	orchestrator.StateGatekeeper: "Gatekeeper",
}

// EventMsg carries one orchestrator event into the view.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg is sent when the run returns.
type DoneMsg struct {
	Ticket *models.FinalTicket
	Err    error
}

type logEntry struct {
	Timestamp time.Time
	Stage     string
	Message   string
}

type stageRow struct {
	state    orchestrator.State
	status   StageStatus
	duration time.Duration
}

// ProgressApp shows the pipeline stages as they run.
type ProgressApp struct {
	runID    string
	stages   []stageRow
	logs     []logEntry
	spinner  spinner.Model
	done     bool
	err      error
	ticket   *models.FinalTicket
	quitting bool
	width    int
	blocking string

	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	logTimeStyle lipgloss.Style
	logStyle     lipgloss.Style
	blockedStyle lipgloss.Style
}

// NewProgressApp creates a ProgressApp with every stage pending.
func NewProgressApp() *ProgressApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	rows := make([]stageRow, 0, len(orchestrator.Stages))
	for _, st := range orchestrator.Stages {
		rows = append(rows, stageRow{state: st})
	}

	return &ProgressApp{
		stages:   rows,
		spinner:  s,
		blocking: policy.Default().Gatekeeper.BlockingLabel,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Width(26),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")),

		blockedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
}

// Init implements tea.Model.
func (a *ProgressApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *ProgressApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		case "enter":
			if a.done {
				return a, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.apply(msg.Event)

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		a.ticket = msg.Ticket
	}
	return a, nil
}

func (a *ProgressApp) apply(e orchestrator.Event) {
	if e.RunID != "" {
		a.runID = e.RunID
	}
	switch e.Type {
	case orchestrator.EventStageStarted:
		a.setStage(e.Stage, StageRunning, 0)
	case orchestrator.EventStageCompleted:
		a.setStage(e.Stage, StageDone, e.Duration)
	case orchestrator.EventStageFailed:
		a.setStage(e.Stage, StageFailed, e.Duration)
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.Error != nil {
		msg += ": " + e.Error.Error()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, logEntry{Timestamp: ts, Stage: string(e.Stage), Message: msg})
}

func (a *ProgressApp) setStage(st orchestrator.State, status StageStatus, d time.Duration) {
	for i := range a.stages {
		if a.stages[i].state == st {
			a.stages[i].status = status
			a.stages[i].duration = d
			return
		}
	}
}

// Status returns the display state of a stage.
func (a *ProgressApp) Status(st orchestrator.State) StageStatus {
	for _, row := range a.stages {
		if row.state == st {
			return row.status
		}
	}
	return StagePending
}

// Done reports whether the run has returned.
func (a *ProgressApp) Done() bool { return a.done }

// Quitting reports whether the user asked to leave before the run finished.
func (a *ProgressApp) Quitting() bool { return a.quitting && !a.done }

// View implements tea.Model.
func (a *ProgressApp) View() string {
	var b strings.Builder

	b.WriteString(a.headerStyle.Render("=== Sprint Guardian ==="))
	if a.runID != "" {
		b.WriteString(a.pendingStyle.Render("  run " + a.runID))
	}
	b.WriteString("\n\n")

	for _, row := range a.stages {
		b.WriteString("  ")
		b.WriteString(a.statusIcon(row.status))
		b.WriteString(" ")
		b.WriteString(a.labelStyle.Render(stageLabels[row.state]))
		if row.duration > 0 {
			b.WriteString(a.pendingStyle.Render(row.duration.Round(10 * time.Millisecond).String()))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("\n")
	case a.done && a.ticket != nil:
		b.WriteString(a.renderTicket(*a.ticket))
	}
	if a.done {
		b.WriteString(a.pendingStyle.Render("Press enter or q to exit"))
	} else {
		b.WriteString(a.pendingStyle.Render("Press q to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *ProgressApp) statusIcon(s StageStatus) string {
	switch s {
	case StageRunning:
		return a.spinner.View()
	case StageDone:
		return a.doneStyle.Render("✓")
	case StageFailed:
		return a.errorStyle.Render("✗")
	default:
		return a.pendingStyle.Render("·")
	}
}

// renderLogs renders the recent log entries.
func (a *ProgressApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	// Show last 6 log entries
	start := 0
	if len(a.logs) > 6 {
		start = len(a.logs) - 6
	}

	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		stage := lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(12).
			Render(entry.Stage)
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, stage, a.logStyle.Render(entry.Message)))
	}

	return b.String()
}

func (a *ProgressApp) renderTicket(t models.FinalTicket) string {
	var b strings.Builder
	title := a.doneStyle.Bold(true).Render(t.Summary)
	if a.blocking != "" && t.HasLabel(a.blocking) {
		title += " " + a.blockedStyle.Render("["+a.blocking+"]")
	}
	b.WriteString(title + "\n")
	b.WriteString(fmt.Sprintf("  %d points · %s priority · %s\n", t.StoryPoints, t.Priority, strings.Join(t.Labels, ", ")))
	return b.String()
}

// SetBlockingLabel sets the label flagged next to the finished ticket.
func (a *ProgressApp) SetBlockingLabel(label string) {
	a.blocking = label
}

// NewProgressProgram creates a new Bubbletea program for the progress view.
func NewProgressProgram(blocking string) (*tea.Program, *ProgressApp) {
	app := NewProgressApp()
	app.SetBlockingLabel(blocking)
	p := tea.NewProgram(app)
	return p, app
}

// Forward sends every event from events to p until the channel closes.
func Forward(p *tea.Program, events <-chan orchestrator.Event) {
	for e := range events {
		p.Send(EventMsg{Event: e})
	}
}
