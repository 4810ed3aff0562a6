package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// keyMap defines the key bindings for the dashboard
type keyMap struct {
	Next    key.Binding
	Logs    key.Binding
	OpenURL key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next service"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "toggle logs"),
		),
		OpenURL: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "close"),
		),
	}
}

// Styles holds all lipgloss styles for the dashboard
type Styles struct {
	Header       lipgloss.Style
	Footer       lipgloss.Style
	ServiceList  lipgloss.Style
	Selected     lipgloss.Style
	Item         lipgloss.Style
	PhaseOK      lipgloss.Style
	PhaseWaiting lipgloss.Style
	PhaseBad     lipgloss.Style
	Muted        lipgloss.Style
	LogViewport  lipgloss.Style
	HelpKey      lipgloss.Style
	HelpDesc     lipgloss.Style
}

// DefaultStyles returns the default color scheme
func DefaultStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#999"}
	highlight := lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"}
	success := lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warning := lipgloss.AdaptiveColor{Light: "#AAAA00", Dark: "#FFFF00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#AA0000", Dark: "#FF0000"}

	return &Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(subtle).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(subtle).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(subtle).
			Padding(0, 1),
		ServiceList: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#333333"}).
			Bold(true),
		Item:         lipgloss.NewStyle(),
		PhaseOK:      lipgloss.NewStyle().Foreground(success),
		PhaseWaiting: lipgloss.NewStyle().Foreground(warning),
		PhaseBad:     lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		Muted:        lipgloss.NewStyle().Foreground(subtle),
		LogViewport: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1),
		HelpKey:  lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpDesc: lipgloss.NewStyle().Foreground(subtle),
	}
}

// Messages for bubbletea
type tickMsg time.Time
type resourceUpdateMsg ResourceStats

// dashboardModel renders a Board. Several models may render the same board
// over the shell's lifetime, one per window.
type dashboardModel struct {
	board    *Board
	selected int
	logsOnly bool
	open     func(string) error

	width    int
	height   int
	viewport viewport.Model
	host     ResourceStats
	notice   string

	keys   keyMap
	styles *Styles
}

func newDashboardModel(board *Board, opts DashboardOptions) *dashboardModel {
	vp := viewport.New(80, 12)
	vp.MouseWheelEnabled = true

	open := opts.Open
	if open == nil {
		open = OpenInBrowser
	}
	m := &dashboardModel{
		board:    board,
		logsOnly: opts.StartOnLogs,
		open:     open,
		width:    80,
		height:   24,
		viewport: vp,
		keys:     defaultKeyMap(),
		styles:   DefaultStyles(),
	}
	m.refreshLogs()
	return m
}

// Init implements tea.Model
func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.sample())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// sample refreshes per-service process stats and returns a host sample.
func (m *dashboardModel) sample() tea.Cmd {
	board := m.board
	return func() tea.Msg {
		for _, s := range board.Services() {
			if s.PID <= 0 {
				continue
			}
			if stats, ok := GetProcessStats(s.PID); ok {
				board.SetStats(s.Name, stats)
			}
		}
		return resourceUpdateMsg(GetResourceStats())
	}
}

// Update implements tea.Model
func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			if n := len(m.board.Services()); n > 0 {
				m.selected = (m.selected + 1) % n
			}
			m.refreshLogs()
			m.viewport.GotoBottom()
			return m, nil
		case key.Matches(msg, m.keys.Logs):
			m.logsOnly = !m.logsOnly
			m.resize()
			return m, nil
		case key.Matches(msg, m.keys.OpenURL):
			if url := m.board.URL(); url != "" {
				if err := m.open(url); err != nil {
					m.notice = "could not open browser: " + err.Error()
				} else {
					m.notice = "opened " + url
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.refreshLogs()
		return m, tea.Batch(tickCmd(), m.sample())

	case resourceUpdateMsg:
		m.host = ResourceStats(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *dashboardModel) resize() {
	m.viewport.Width = max(m.width-4, 20)
	reserved := 12 // header, service list, monitor, footer
	if m.logsOnly {
		reserved = 6
	}
	m.viewport.Height = max(m.height-reserved, 3)
	m.refreshLogs()
}

func (m *dashboardModel) refreshLogs() {
	services := m.board.Services()
	if len(services) == 0 {
		m.viewport.SetContent("")
		return
	}
	if m.selected >= len(services) {
		m.selected = 0
	}
	atBottom := m.viewport.AtBottom()
	lines := m.board.Logs(services[m.selected].Name, 0)
	if len(lines) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render("no output captured"))
		return
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model
func (m *dashboardModel) View() string {
	var sections []string
	sections = append(sections, m.renderHeader())
	if !m.logsOnly {
		sections = append(sections, m.renderServices(), m.renderMonitor())
	}
	sections = append(sections, m.renderLogs(), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *dashboardModel) renderHeader() string {
	title := m.board.Title()
	if url := m.board.URL(); url != "" {
		title += "  " + url
	}
	if status, ok := m.board.BridgeStatus(); ok {
		title += fmt.Sprintf("  backend %s:%d", status.Status, status.Port)
	}
	return m.styles.Header.Width(max(m.width-2, 20)).Render(title)
}

func (m *dashboardModel) renderServices() string {
	var rows []string
	for i, s := range m.board.Services() {
		cursor := "  "
		style := m.styles.Item
		if i == m.selected {
			cursor = "▸ "
			style = m.styles.Selected
		}

		row := fmt.Sprintf("%s%-6s %s", cursor, s.Name, m.renderPhase(s.Phase))
		if s.PID > 0 {
			row += fmt.Sprintf("  pid %d  cpu %.1f%%  mem %s", s.PID, s.Stats.CPUPercent, FormatBytes(s.Stats.RSS))
			if s.Stats.Processes > 1 {
				row += fmt.Sprintf("  (%d procs)", s.Stats.Processes)
			}
		}
		if s.Detail != "" {
			row += "  " + m.styles.Muted.Render(s.Detail)
		}
		rows = append(rows, style.Render(row))
	}
	return m.styles.ServiceList.Render(strings.Join(rows, "\n"))
}

func (m *dashboardModel) renderPhase(p Phase) string {
	switch p {
	case PhaseReady, PhaseRunning:
		return m.styles.PhaseOK.Render(string(p))
	case PhaseFailed, PhaseExited:
		return m.styles.PhaseBad.Render(string(p))
	default:
		return m.styles.PhaseWaiting.Render(string(p))
	}
}

func (m *dashboardModel) renderMonitor() string {
	return m.styles.Muted.Render(fmt.Sprintf(" host cpu %.1f%%  mem %s / %s (%.0f%%)",
		m.host.CPUPercent, FormatBytes(m.host.MemoryUsed), FormatBytes(m.host.MemoryTotal), m.host.MemPercent))
}

func (m *dashboardModel) renderLogs() string {
	return m.styles.LogViewport.Render(m.viewport.View())
}

func (m *dashboardModel) renderFooter() string {
	bindings := []key.Binding{m.keys.Next, m.keys.Logs, m.keys.OpenURL, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.styles.HelpKey.Render(h.Key)+" "+m.styles.HelpDesc.Render(h.Desc))
	}
	footer := strings.Join(parts, "  ")
	if m.notice != "" {
		footer += "  " + m.styles.Muted.Render(m.notice)
	}
	return m.styles.Footer.Render(footer)
}

// DashboardOptions configures dashboard windows.
type DashboardOptions struct {
	// StartOnLogs opens the window on the log pane.
	StartOnLogs bool
	// Open launches the system browser; defaults to OpenInBrowser.
	Open func(url string) error
	// Input and Output override the terminal.
	Input  io.Reader
	Output io.Writer
}

// DashboardWindow shows a Board as a full-screen terminal UI.
type DashboardWindow struct {
	board *Board
	opts  DashboardOptions

	mu      sync.Mutex
	program *tea.Program
	closed  chan struct{}
	once    sync.Once
}

// NewDashboardWindow returns a hidden dashboard window over board.
func NewDashboardWindow(board *Board, opts DashboardOptions) *DashboardWindow {
	return &DashboardWindow{board: board, opts: opts, closed: make(chan struct{})}
}

// DashboardFactory creates dashboard windows sharing board.
func DashboardFactory(board *Board, opts DashboardOptions) Factory {
	return func() (Window, error) {
		return NewDashboardWindow(board, opts), nil
	}
}

func (w *DashboardWindow) LoadURL(url string) error {
	w.board.SetURL(url)
	return nil
}

// Show starts the terminal UI. It returns immediately; the window closes
// when the user quits it or Close is called.
func (w *DashboardWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.program != nil {
		return nil
	}
	select {
	case <-w.closed:
		return errWindowClosed
	default:
	}

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	if w.opts.Input != nil {
		opts = append(opts, tea.WithInput(w.opts.Input))
	}
	if w.opts.Output != nil {
		opts = append(opts, tea.WithOutput(w.opts.Output))
	}
	w.program = tea.NewProgram(newDashboardModel(w.board, w.opts), opts...)

	program := w.program
	go func() {
		_, _ = program.Run()
		w.markClosed()
	}()
	return nil
}

func (w *DashboardWindow) Close() error {
	w.mu.Lock()
	program := w.program
	w.mu.Unlock()

	if program == nil {
		w.markClosed()
		return nil
	}
	program.Quit()
	<-w.closed
	return nil
}

func (w *DashboardWindow) Closed() <-chan struct{} { return w.closed }

func (w *DashboardWindow) markClosed() {
	w.once.Do(func() { close(w.closed) })
}
