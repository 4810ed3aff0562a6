package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harshul/calcshell/internal/bridge"
)

func TestBoardTracksServices(t *testing.T) {
	b := NewBoard("calculator", nil, "data", "ui")

	services := b.Services()
	if len(services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(services))
	}
	if services[0].Name != "data" || services[1].Name != "ui" {
		t.Errorf("expected data, ui order, got %s, %s", services[0].Name, services[1].Name)
	}
	if services[0].Phase != PhasePending {
		t.Errorf("expected phase Pending, got '%s'", services[0].Phase)
	}
}

func TestBoardLifecycle(t *testing.T) {
	b := NewBoard("calculator", nil, "data")

	b.ServiceStarting("data")
	b.ServiceStarted("data", 4242)
	b.ServiceReady("data", true)
	if got := b.Services()[0]; got.Phase != PhaseReady || got.PID != 4242 {
		t.Errorf("expected Ready with pid 4242, got %s pid %d", got.Phase, got.PID)
	}

	// A stale exit for another pid is ignored.
	b.ServiceExited("data", 1, nil)
	if got := b.Services()[0]; got.Phase != PhaseReady {
		t.Errorf("stale exit changed phase to %s", got.Phase)
	}

	b.ServiceExited("data", 4242, errors.New("exit status 1"))
	got := b.Services()[0]
	if got.Phase != PhaseExited || got.PID != 0 {
		t.Errorf("expected Exited with no pid, got %s pid %d", got.Phase, got.PID)
	}
	if got.Detail != "exit status 1" {
		t.Errorf("expected exit detail, got %q", got.Detail)
	}

	// Readiness arriving after the exit does not resurrect the service.
	b.ServiceReady("data", true)
	if got := b.Services()[0]; got.Phase != PhaseExited {
		t.Errorf("expected Exited to stick, got %s", got.Phase)
	}
}

func TestBoardWriterSplitsLines(t *testing.T) {
	b := NewBoard("calculator", nil, "data")
	w := b.Writer("data")

	fmt.Fprint(w, "INFO: Uvicorn running\r\nINFO: App")
	fmt.Fprint(w, "lication startup complete\n\n")

	logs := b.Logs("data", 0)
	if len(logs) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(logs), logs)
	}
	if !strings.HasSuffix(logs[0], "] INFO: Uvicorn running") {
		t.Errorf("unexpected first line %q", logs[0])
	}
	if !strings.HasSuffix(logs[1], "] INFO: Application startup complete") {
		t.Errorf("unexpected second line %q", logs[1])
	}

	// A partial line is flushed when the process exits.
	fmt.Fprint(w, "Shutting down")
	b.ServiceExited("data", 0, nil)
	if logs := b.Logs("data", 1); len(logs) != 1 || !strings.HasSuffix(logs[0], "Shutting down") {
		t.Errorf("expected flushed partial line, got %v", logs)
	}
}

func TestLogBufferDropsOldest(t *testing.T) {
	lb := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		lb.Append(fmt.Sprintf("line %d", i))
	}

	if lb.Len() != 3 {
		t.Fatalf("expected 3 lines, got %d", lb.Len())
	}
	got := lb.GetLast(0)
	if got[0] != "line 3" || got[2] != "line 5" {
		t.Errorf("unexpected buffer contents %v", got)
	}
	if last := lb.GetLast(1); len(last) != 1 || last[0] != "line 5" {
		t.Errorf("GetLast(1) = %v", last)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type staticStatus struct{}

func (staticStatus) GetBackendStatus() bridge.BackendStatus {
	return bridge.BackendStatus{Status: "running", Port: 8000}
}

func TestDashboardKeys(t *testing.T) {
	b := NewBoard("calculator", staticStatus{}, "data", "ui")
	b.SetURL("http://localhost:3000")

	var opened []string
	m := newDashboardModel(b, DashboardOptions{Open: func(url string) error {
		opened = append(opened, url)
		return nil
	}})

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.selected != 1 {
		t.Errorf("expected tab to select service 1, got %d", m.selected)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.selected != 0 {
		t.Errorf("expected tab to wrap to service 0, got %d", m.selected)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	if len(opened) != 1 || opened[0] != "http://localhost:3000" {
		t.Errorf("expected URL opened once, got %v", opened)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if !m.logsOnly {
		t.Error("expected l to switch to the log pane")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected q to return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected q to quit the program")
	}
}

func TestDashboardView(t *testing.T) {
	b := NewBoard("calculator", staticStatus{}, "data", "ui")
	b.SetURL("http://localhost:3000")
	b.ServiceStarted("data", 4242)
	b.ServiceFailed("ui", errors.New("executable not found"))

	m := newDashboardModel(b, DashboardOptions{})
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	view := m.View()

	for _, want := range []string{"calculator", "http://localhost:3000", "backend running:8000", "data", "pid 4242", "Failed", "executable not found"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDashboardStartsOnLogs(t *testing.T) {
	b := NewBoard("calculator", nil, "data")
	m := newDashboardModel(b, DashboardOptions{StartOnLogs: true})
	if strings.Contains(m.View(), "host cpu") {
		t.Error("log pane should hide the monitor")
	}
}

func TestDashboardWindowCloseBeforeShow(t *testing.T) {
	w := NewDashboardWindow(NewBoard("calculator", nil), DashboardOptions{})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-w.Closed():
	case <-time.After(time.Second):
		t.Fatal("window not closed")
	}
	if err := w.Show(); err == nil {
		t.Error("expected Show on a closed window to fail")
	}
}

func TestBoardExitBeforeStarted(t *testing.T) {
	b := NewBoard("calculator", nil, "data")

	b.ServiceStarting("data")
	b.ServiceExited("data", 4242, errors.New("exit status 2"))
	b.ServiceStarted("data", 4242)

	got := b.Services()[0]
	if got.Phase != PhaseExited || got.PID != 0 {
		t.Errorf("expected Exited with no pid, got %s pid %d", got.Phase, got.PID)
	}
	if got.Detail != "exit status 2" {
		t.Errorf("expected exit detail, got %q", got.Detail)
	}

	// A later launch under a new pid runs normally.
	b.ServiceStarting("data")
	b.ServiceStarted("data", 5151)
	if got := b.Services()[0]; got.Phase != PhaseRunning || got.PID != 5151 {
		t.Errorf("expected Running with pid 5151, got %s pid %d", got.Phase, got.PID)
	}
}
