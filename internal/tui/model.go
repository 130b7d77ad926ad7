package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/events"
	"github.com/mattjoyce/putput/internal/log"
)

const (
	inputHeight   = 5
	toastDuration = 3 * time.Second
)

// Controller is the part of the coordinator the UI drives.
type Controller interface {
	Submit(text string)
	TextChanged(text string)
	Clear()
	ToggleAutoRun() bool
	Copy(panel int, seen uint64) error
}

// Options configures the model.
type Options struct {
	Title string
	// Events, when set, feeds the status bar.
	Events <-chan events.Event
	// Initial is shown until the first snapshot arrives.
	Initial coordinator.Snapshot
}

// Model is the BubbleTea model for the putput TUI.
type Model struct {
	ctrl  Controller
	title string

	width  int
	height int

	// State
	snap      coordinator.Snapshot
	lastEvent *events.Event

	// views holds one scrollable body per slot; focus is the slot the
	// scroll keys move.
	views []viewport.Model
	focus int

	// Widgets
	input   textarea.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	theme   Theme

	// Communication
	events <-chan events.Event

	toast    string
	toastErr bool
	toastID  int
}

// New creates the TUI model.
func New(ctrl Controller, opts Options) Model {
	keys := defaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Type or paste input... (Enter to run, Ctrl+J for newline)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	title := opts.Title
	if title == "" {
		title = "Putput"
	}

	m := Model{
		ctrl:    ctrl,
		title:   title,
		snap:    opts.Initial,
		input:   ta,
		spinner: sp,
		help:    help.New(),
		keys:    keys,
		theme:   NewDefaultTheme(),
		events:  opts.Events,
	}
	m.syncPanels(true)
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick}
	if m.events != nil {
		cmds = append(cmds, receiveNextEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		m.help.Width = msg.Width
		m.layoutPanels()

	case SnapshotMsg:
		snap := coordinator.Snapshot(msg)
		// Never step back to an older generation.
		if snap.Generation < m.snap.Generation {
			return m, nil
		}
		newGen := snap.Generation != m.snap.Generation
		m.snap = snap
		m.syncPanels(newGen)

	case eventMsg:
		e := events.Event(msg)
		m.lastEvent = &e
		return m, receiveNextEvent(m.events)

	case clearToastMsg:
		if msg.id == m.toastID {
			m.toast = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		m.ctrl.Submit(m.input.Value())
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.input.Reset()
		m.ctrl.Clear()
		return m, nil

	case key.Matches(msg, m.keys.AutoRun):
		state := "off"
		if m.ctrl.ToggleAutoRun() {
			state = "on"
		}
		return m.setToast("Auto-run "+state, false)

	case key.Matches(msg, m.keys.Copy):
		panel, _ := copyPanel(msg.String())
		return m.copy(panel)

	case key.Matches(msg, m.keys.FocusNext):
		m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.FocusPrev):
		m.moveFocus(-1)
		return m, nil

	case key.Matches(msg, m.keys.LineUp):
		m.scroll(-1)
		return m, nil

	case key.Matches(msg, m.keys.LineDown):
		m.scroll(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.scroll(-m.pageSize())
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.scroll(m.pageSize())
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.ctrl.TextChanged(after)
	}
	return m, cmd
}

// syncPanels loads the current snapshot into the panel views. A new
// generation scrolls every panel back to the top; updates within the same
// generation keep the scroll position.
func (m *Model) syncPanels(newGen bool) {
	if len(m.views) != len(m.snap.Slots) {
		m.views = make([]viewport.Model, len(m.snap.Slots))
		for i := range m.views {
			m.views[i] = newPanelView()
		}
		newGen = true
	}
	if m.focus >= len(m.views) {
		m.focus = 0
	}
	m.layoutPanels()
	for i, slot := range m.snap.Slots {
		m.views[i].SetContent(PanelBody(slot))
		if newGen {
			m.views[i].GotoTop()
		}
	}
}

// layoutPanels sizes the panel views to the space left by the other widgets.
func (m *Model) layoutPanels() {
	if m.width == 0 {
		return
	}
	lines := panelBodyLines(len(m.views), m.height-m.chromeHeight())
	for i := range m.views {
		m.views[i].Width = m.width - 4
		m.views[i].Height = lines
	}
}

// chromeHeight is the number of rows used by everything except the panels.
func (m Model) chromeHeight() int {
	header := renderHeader(m.title, m.snap, m.theme, m.width)
	input := m.theme.Border.Width(m.width - 4).Render(m.input.View())
	return lipgloss.Height(header) + lipgloss.Height(input) + lipgloss.Height(m.renderStatusBar()) + lipgloss.Height(m.help.View(m.keys))
}

func (m *Model) moveFocus(delta int) {
	n := len(m.views)
	if n == 0 {
		return
	}
	m.focus = ((m.focus+delta)%n + n) % n
}

func (m *Model) scroll(lines int) {
	if m.focus < len(m.views) {
		scrollBy(&m.views[m.focus], lines)
	}
}

func (m Model) pageSize() int {
	if m.focus < len(m.views) && m.views[m.focus].Height > 0 {
		return m.views[m.focus].Height
	}
	return 1
}

func (m Model) copy(panel int) (tea.Model, tea.Cmd) {
	err := m.ctrl.Copy(panel, m.snap.Generation)
	switch {
	case err == nil:
		return m.setToast(fmt.Sprintf("Panel %d copied to clipboard", panel+1), false)
	case errors.Is(err, coordinator.ErrNoSuchPanel):
		return m.setToast(fmt.Sprintf("No panel %d", panel+1), true)
	case errors.Is(err, coordinator.ErrStaleSelection):
		return m.setToast(fmt.Sprintf("Panel %d is not ready, nothing copied", panel+1), true)
	default:
		log.WithComponent("tui").Warn("copy failed", "slot", panel, "error", err)
		return m.setToast("Clipboard unavailable", true)
	}
}

func (m Model) setToast(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.toastID++
	m.toast = text
	m.toastErr = isErr
	id := m.toastID
	return m, tea.Tick(toastDuration, func(time.Time) tea.Msg { return clearToastMsg{id: id} })
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := renderHeader(m.title, m.snap, m.theme, m.width)
	input := m.theme.Border.Width(m.width - 4).Render(m.input.View())
	status := m.renderStatusBar()
	helpView := m.help.View(m.keys)
	panels := renderPanels(m.snap, m.views, m.focus, m.spinner.View(), m.theme, m.width)

	return lipgloss.JoinVertical(lipgloss.Left, header, input, panels, status, helpView)
}

func (m Model) renderStatusBar() string {
	if m.toast != "" {
		if m.toastErr {
			return m.theme.ToastErr.Render(" ⚠ " + m.toast)
		}
		return m.theme.Toast.Render(" ✓ " + m.toast)
	}
	if m.lastEvent != nil {
		e := m.lastEvent
		return m.theme.Dim.Render(fmt.Sprintf(" %s %s", e.At.Local().Format("15:04:05"), e.String()))
	}
	return m.theme.Dim.Render(" ready")
}
