// Package supervisor owns the registry of live child processes and tears
// their process trees down on shutdown.
package supervisor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunningProcess is one live service process.
type RunningProcess struct {
	Service   string
	PID       int
	StartedAt time.Time
}

// TreeKiller terminates a process and every process it spawned.
type TreeKiller interface {
	KillTree(pid int) error
}

// KillerFunc adapts a function to TreeKiller.
type KillerFunc func(pid int) error

func (f KillerFunc) KillTree(pid int) error { return f(pid) }

// TerminationError reports a tracked process that could not be signalled.
type TerminationError struct {
	Service string
	PID     int
	Err     error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminate %s (pid %d): %v", e.Service, e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }

// ErrAlreadyRunning is returned by Register when the service already has a live entry.
var ErrAlreadyRunning = errors.New("service already running")

// Supervisor is the registry of running service processes, kept in
// registration order.
type Supervisor struct {
	mu     sync.Mutex
	procs  []RunningProcess
	killer TreeKiller
	logger *zap.Logger
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithKiller replaces the platform tree killer.
func WithKiller(k TreeKiller) Option {
	return func(s *Supervisor) {
		if k != nil {
			s.killer = k
		}
	}
}

// WithLogger sets the logger for registration and termination events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty supervisor backed by the platform tree killer.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		killer: DefaultKiller(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds proc. A service may have at most one live entry.
func (s *Supervisor) Register(proc RunningProcess) error {
	if proc.Service == "" || proc.PID <= 0 {
		return fmt.Errorf("register: invalid process %q pid %d", proc.Service, proc.PID)
	}
	if proc.StartedAt.IsZero() {
		proc.StartedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.procs {
		if p.Service == proc.Service {
			return fmt.Errorf("register %s (pid %d): %w as pid %d", proc.Service, proc.PID, ErrAlreadyRunning, p.PID)
		}
	}
	s.procs = append(s.procs, proc)
	s.logger.Debug("process registered", zap.String("service", proc.Service), zap.Int("pid", proc.PID))
	return nil
}

// Remove drops the entry for service if it still belongs to pid. It reports
// whether an entry was removed.
func (s *Supervisor) Remove(service string, pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.procs {
		if p.Service == service && p.PID == pid {
			s.procs = append(s.procs[:i], s.procs[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup returns the live entry for service.
func (s *Supervisor) Lookup(service string) (RunningProcess, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.procs {
		if p.Service == service {
			return p, true
		}
	}
	return RunningProcess{}, false
}

// Running returns a snapshot of the registry in registration order.
func (s *Supervisor) Running() []RunningProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunningProcess(nil), s.procs...)
}

// TerminateAll empties the registry and kills each drained process tree.
// Every entry is attempted; failures are logged and returned joined. Calling
// it again finds nothing to do and returns nil.
func (s *Supervisor) TerminateAll() error {
	s.mu.Lock()
	drained := s.procs
	s.procs = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range drained {
		if err := s.killer.KillTree(p.PID); err != nil {
			terr := &TerminationError{Service: p.Service, PID: p.PID, Err: err}
			s.logger.Warn("failed to terminate process tree",
				zap.String("service", p.Service),
				zap.Int("pid", p.PID),
				zap.Error(err),
			)
			errs = append(errs, terr)
			continue
		}
		s.logger.Info("terminated process tree", zap.String("service", p.Service), zap.Int("pid", p.PID))
	}
	return errors.Join(errs...)
}
