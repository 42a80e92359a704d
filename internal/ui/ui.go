package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"taskmage/internal/config"
	"taskmage/internal/selection"
	"taskmage/internal/storage"
)

type mode int

const (
	modeList mode = iota
	modePrompt
	modeTiming
)

type promptKind int

const (
	promptSummary promptKind = iota
	promptDescription
	promptAddTime
	promptSubTime
)

// Rows below the task list: two rules, the detail panel, status and help.
const (
	detailRows   = 5
	reservedRows = detailRows + 4
)

// promptState is the pending text request. The loop stays in modePrompt
// until the input is confirmed or cancelled, then returns to resume.
type promptState struct {
	kind    promptKind
	summary string
	resume  mode
}

type timerState struct {
	taskID  string
	started time.Time
	session int
	label   string
}

func (t timerState) running(now time.Time) string {
	return fmt.Sprintf("%s -- %s", t.label, formatClock(now.Sub(t.started)))
}

// tickMsg is the once-a-second wakeup while a task is being timed.
type tickMsg struct {
	session int
}

var (
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	summaryStyle  = lipgloss.NewStyle().Bold(true)
	ruleStyle     = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	ctl      *selection.Controller
	cfg      config.Config
	keys     keyMap
	help     help.Model
	mode     mode
	input    textinput.Model
	prompt   *promptState
	timer    *timerState
	sessions int
	status   string
	showAll  bool
	sized    bool
	width    int
	now      func() time.Time
}

func New(ctl *selection.Controller, cfg config.Config) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		ctl:   ctl,
		cfg:   cfg,
		keys:  newKeyMap(cfg.Keys),
		help:  help.New(),
		input: ti,
		mode:  modeList,
		now:   time.Now,
	}
	m.status = m.position()
	return m
}

func Run(ctl *selection.Controller, cfg config.Config) error {
	program := tea.NewProgram(New(ctl, cfg), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modePrompt:
			return m.updatePromptMode(msg)
		case modeTiming:
			return m.updateTimingMode(msg)
		}
		return m.updateListMode(msg)
	case tickMsg:
		return m.updateTick(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-20, 10)
		// The list height is fixed for the session once the terminal
		// size is known.
		if !m.sized {
			m.sized = true
			if fit := msg.Height - reservedRows; fit < m.cfg.ListHeight {
				m.ctl.SetHeight(max(fit, 1))
			}
		}
	default:
		// Cursor blinks and other input messages.
		if m.mode == modePrompt {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) updateListMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		m.ctl.MoveNext()
		m.status = m.position()
	case key.Matches(msg, m.keys.Prev):
		m.ctl.MovePrev()
		m.status = m.position()
	case key.Matches(msg, m.keys.Add):
		return m.startPrompt(promptSummary, "", modeList)
	case key.Matches(msg, m.keys.Complete):
		t, err := m.ctl.CompleteSelected()
		switch {
		case errors.Is(err, selection.ErrNoSelection):
			m.status = "No task selected"
		case err != nil:
			m.status = failure("complete", err)
		default:
			m.status = fmt.Sprintf("Done task: %s", t.Summary)
		}
	case key.Matches(msg, m.keys.Time):
		return m.startTimer()
	case key.Matches(msg, m.keys.Filter):
		m.toggleFilter()
	}
	return m, nil
}

func (m *Model) toggleFilter() {
	filter, label := map[string][]string(nil), "Showing all tasks"
	if m.showAll {
		filter, label = m.cfg.Filter, "Showing filtered tasks"
	}
	if err := m.ctl.SetFilter(filter); err != nil {
		m.status = failure("filter", err)
		return
	}
	m.showAll = !m.showAll
	m.status = label
}

func (m Model) startPrompt(kind promptKind, summary string, resume mode) (tea.Model, tea.Cmd) {
	m.prompt = &promptState{kind: kind, summary: summary, resume: resume}
	m.mode = modePrompt
	m.input.Prompt = promptLabel(kind)
	m.input.SetValue("")
	return m, m.input.Focus()
}

func promptLabel(kind promptKind) string {
	switch kind {
	case promptDescription:
		return "Description: "
	case promptAddTime:
		return "Add time: "
	case promptSubTime:
		return "Subtract time: "
	default:
		return "Summary: "
	}
}

func (m Model) updatePromptMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		resume := m.prompt.resume
		m.endPrompt()
		m.status = "Cancelled"
		if resume == modeTiming {
			m.status = m.timer.running(m.now())
		}
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		return m.submitPrompt(strings.TrimSpace(m.input.Value()))
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) endPrompt() {
	m.mode = m.prompt.resume
	m.prompt = nil
	m.input.SetValue("")
	m.input.Blur()
}

func (m Model) submitPrompt(value string) (tea.Model, tea.Cmd) {
	p := *m.prompt
	switch p.kind {
	case promptSummary:
		if value == "" {
			m.status = "Summary cannot be empty"
			return m, nil
		}
		return m.startPrompt(promptDescription, value, p.resume)
	case promptDescription:
		m.endPrompt()
		t, err := m.ctl.AddTask(p.summary, value)
		if err != nil {
			m.status = failure("add", err)
			return m, nil
		}
		m.status = fmt.Sprintf("Added %s", t.Summary)
	case promptAddTime, promptSubTime:
		m.endPrompt()
		secs, err := parseDuration(value)
		if err != nil {
			m.status = "Could not parse time."
			return m, nil
		}
		dir, verb := selection.Add, "Added"
		if p.kind == promptSubTime {
			dir, verb = selection.Subtract, "Subtracted"
		}
		if _, err := m.ctl.LogTime(m.timer.taskID, secs, dir); err != nil {
			m.status = failure("log time", err)
			return m, nil
		}
		m.status = fmt.Sprintf("%s %s.", verb, formatSeconds(secs))
	}
	return m, nil
}

func (m Model) startTimer() (tea.Model, tea.Cmd) {
	t, ok := m.ctl.Selected()
	if !ok {
		m.status = "No task selected"
		return m, nil
	}
	m.sessions++
	started := m.now()
	m.timer = &timerState{
		taskID:  t.ID,
		started: started,
		session: m.sessions,
		label:   "Started at " + started.Format("15:04"),
	}
	m.mode = modeTiming
	m.status = m.timer.label
	return m, m.tick()
}

func (m Model) tick() tea.Cmd {
	session := m.timer.session
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{session: session}
	})
}

func (m Model) updateTick(msg tickMsg) (tea.Model, tea.Cmd) {
	if m.timer == nil || msg.session != m.timer.session {
		return m, nil
	}
	if m.mode == modeTiming {
		m.status = m.timer.running(m.now())
	}
	return m, m.tick()
}

func (m Model) updateTimingMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.AddTime):
		return m.startPrompt(promptAddTime, "", modeTiming)
	case key.Matches(msg, m.keys.SubTime):
		return m.startPrompt(promptSubTime, "", modeTiming)
	case key.Matches(msg, m.keys.Time):
		elapsed := int64(max(m.now().Sub(m.timer.started), 0) / time.Second)
		id := m.timer.taskID
		m.timer = nil
		m.mode = modeList
		if _, err := m.ctl.AccumulateElapsed(id, elapsed); err != nil {
			m.status = failure("log time", err)
			return m, nil
		}
		m.status = fmt.Sprintf("Logged %s.", formatSeconds(elapsed))
	}
	return m, nil
}

func (m Model) position() string {
	n := len(m.ctl.View())
	if n == 0 {
		return fmt.Sprintf("No tasks. Press '%s' to add one.", m.cfg.Keys.Add)
	}
	return fmt.Sprintf("Task %d of %d", m.ctl.Cursor().Selected+1, n)
}

func failure(action string, err error) string {
	var ioErr *storage.IOError
	if errors.As(err, &ioErr) {
		return fmt.Sprintf("save failed: %v", err)
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTaskList())
	b.WriteString(m.rule())
	b.WriteString("\n")
	b.WriteString(m.renderDetails())
	b.WriteString(m.rule())
	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	if m.mode == modePrompt {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(m.help.View(m.keys.helpFor(m.mode)))
	}
	return b.String()
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	cur := m.ctl.Cursor()
	window := m.ctl.Window()
	for i, t := range window {
		line := t.Summary
		if m.width > 1 {
			line = lipgloss.NewStyle().Width(m.width - 1).MaxWidth(m.width - 1).Render(line)
		}
		if cur.Offset+i == cur.Selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	for range cur.Height - len(window) {
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderDetails() string {
	t, ok := m.ctl.Selected()
	if !ok {
		return strings.Repeat("\n", detailRows)
	}
	lines := []string{
		fmt.Sprintf("%s (%s)", t.CreatedAt.Local().Format("02/01/2006"), humanize.Time(t.CreatedAt)),
		summaryStyle.Render(t.Summary),
		t.Description,
		string(t.Status),
		formatSeconds(t.LoggedTime),
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) rule() string {
	return ruleStyle.Render(strings.Repeat("=", max(m.width, 20)))
}
