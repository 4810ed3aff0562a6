package ui

import (
	"io"
	"sync"
	"time"

	"github.com/harshul/calcshell/internal/bridge"
)

// Phase is where a service is in its lifecycle.
type Phase string

const (
	PhasePending  Phase = "Pending"
	PhaseStarting Phase = "Starting"
	PhaseRunning  Phase = "Running"
	PhaseReady    Phase = "Ready"
	PhaseNotReady Phase = "Not ready"
	PhaseFailed   Phase = "Failed"
	PhaseExited   Phase = "Exited"
)

// ServiceState is a point-in-time view of one service.
type ServiceState struct {
	Name      string
	Phase     Phase
	PID       int
	ExitedPID int // last process seen exiting, 0 if none
	Detail    string
	StartedAt time.Time
	Stats     ProcessStats
}

// StatusSource is the only view of the shell the dashboard gets.
type StatusSource interface {
	GetBackendStatus() bridge.BackendStatus
}

type serviceEntry struct {
	state  ServiceState
	logs   *LogBuffer
	writer *lineWriter
}

// Board collects what the dashboard shows: service phases, captured output
// and the loaded URL. It outlives any single dashboard window.
type Board struct {
	mu       sync.RWMutex
	title    string
	services []*serviceEntry
	url      string
	status   StatusSource
	maxLines int
}

// NewBoard creates a board tracking the named services in order.
func NewBoard(title string, status StatusSource, services ...string) *Board {
	b := &Board{title: title, status: status, maxLines: 1000}
	for _, name := range services {
		b.entry(name)
	}
	return b
}

// entry returns the entry for name, adding it if new. Callers must not hold mu.
func (b *Board) entry(name string) *serviceEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.services {
		if e.state.Name == name {
			return e
		}
	}
	logs := NewLogBuffer(b.maxLines)
	e := &serviceEntry{
		state:  ServiceState{Name: name, Phase: PhasePending},
		logs:   logs,
		writer: &lineWriter{dst: logs, now: time.Now},
	}
	b.services = append(b.services, e)
	return e
}

func (b *Board) update(name string, fn func(*ServiceState)) {
	e := b.entry(name)
	b.mu.Lock()
	fn(&e.state)
	b.mu.Unlock()
}

// Writer returns a line-splitting writer feeding name's log pane.
func (b *Board) Writer(name string) io.Writer {
	return b.entry(name).writer
}

// Logs returns up to the last n lines captured for name.
func (b *Board) Logs(name string, n int) []string {
	return b.entry(name).logs.GetLast(n)
}

// ServiceStarting marks name as being launched.
func (b *Board) ServiceStarting(name string) {
	b.update(name, func(s *ServiceState) {
		s.Phase = PhaseStarting
		s.Detail = ""
	})
}

// ServiceStarted records the live process for name.
func (b *Board) ServiceStarted(name string, pid int) {
	b.update(name, func(s *ServiceState) {
		// The exit watcher can report a short-lived process first.
		if s.Phase == PhaseExited && s.ExitedPID == pid {
			return
		}
		s.Phase = PhaseRunning
		s.PID = pid
		s.StartedAt = time.Now()
	})
}

// ServiceReady records the readiness probe outcome.
func (b *Board) ServiceReady(name string, ready bool) {
	b.update(name, func(s *ServiceState) {
		if s.Phase == PhaseExited || s.Phase == PhaseFailed {
			return
		}
		if ready {
			s.Phase = PhaseReady
		} else {
			s.Phase = PhaseNotReady
		}
	})
}

// ServiceFailed records a launch failure.
func (b *Board) ServiceFailed(name string, err error) {
	b.update(name, func(s *ServiceState) {
		s.Phase = PhaseFailed
		s.Detail = err.Error()
	})
}

// ServiceExited records that pid is gone. An exit reported before
// ServiceStarted is kept.
func (b *Board) ServiceExited(name string, pid int, err error) {
	e := b.entry(name)
	e.writer.Flush()
	b.update(name, func(s *ServiceState) {
		early := s.PID == 0 && s.Phase == PhaseStarting
		if s.PID != pid && !early {
			return
		}
		s.Phase = PhaseExited
		s.PID = 0
		s.ExitedPID = pid
		s.Detail = "exited cleanly"
		if err != nil {
			s.Detail = err.Error()
		}
	})
}

// SetStats stores a usage sample for name.
func (b *Board) SetStats(name string, stats ProcessStats) {
	b.update(name, func(s *ServiceState) { s.Stats = stats })
}

// SetURL records the URL the window has loaded.
func (b *Board) SetURL(url string) {
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
}

// URL returns the loaded URL.
func (b *Board) URL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.url
}

// Title returns the board heading.
func (b *Board) Title() string { return b.title }

// BridgeStatus returns the bridge's answer, if a bridge is attached.
func (b *Board) BridgeStatus() (bridge.BackendStatus, bool) {
	if b.status == nil {
		return bridge.BackendStatus{}, false
	}
	return b.status.GetBackendStatus(), true
}

// Services returns the state of every tracked service in order.
func (b *Board) Services() []ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ServiceState, len(b.services))
	for i, e := range b.services {
		out[i] = e.state
	}
	return out
}
