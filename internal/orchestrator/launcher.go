package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harshul/calcshell/internal/supervisor"
)

// Starter launches a service and registers it.
type Starter interface {
	Start(ctx context.Context, spec ServiceSpec) (supervisor.RunningProcess, error)
}

// ExitFunc is told when a launched process has exited.
type ExitFunc func(service string, pid int, err error)

// Launcher spawns service processes, registers them with the supervisor and
// watches for their exit.
type Launcher struct {
	sup    *supervisor.Supervisor
	logger *zap.Logger

	// Sink, if set, returns an extra writer for a service's captured output.
	Sink func(service string) io.Writer
	// OnExit, if set, is called after an exited process is deregistered.
	OnExit ExitFunc
	// Stdout and Stderr receive inherited output. They default to the shell's
	// own; set them to nil to send inherited output to the Sink instead.
	Stdout io.Writer
	Stderr io.Writer
}

// NewLauncher returns a launcher registering into sup.
func NewLauncher(sup *supervisor.Supervisor, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{sup: sup, logger: logger, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Start spawns spec in its own process group and registers it before
// returning. Every failure comes back as a *SpawnError.
func (l *Launcher) Start(ctx context.Context, spec ServiceSpec) (supervisor.RunningProcess, error) {
	if err := ctx.Err(); err != nil {
		return supervisor.RunningProcess{}, &SpawnError{Service: spec.Name, Err: err}
	}
	if spec.Command == "" {
		return supervisor.RunningProcess{}, &SpawnError{Service: spec.Name, Err: errors.New("empty command")}
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = sysProcAttr()

	var sink io.Writer
	if l.Sink != nil {
		sink = l.Sink(spec.Name)
	}

	var streams []namedStream
	switch spec.Output {
	case OutputCapture:
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return supervisor.RunningProcess{}, &SpawnError{Service: spec.Name, Err: err}
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return supervisor.RunningProcess{}, &SpawnError{Service: spec.Name, Err: err}
		}
		streams = []namedStream{{"stdout", stdout}, {"stderr", stderr}}
	default:
		cmd.Stdout, cmd.Stderr = sink, sink
		if l.Stdout != nil {
			cmd.Stdout = l.Stdout
		}
		if l.Stderr != nil {
			cmd.Stderr = l.Stderr
		}
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			err = errors.Join(ErrExecutableNotFound, err)
		}
		return supervisor.RunningProcess{}, &SpawnError{Service: spec.Name, Err: err}
	}

	proc := supervisor.RunningProcess{
		Service:   spec.Name,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	if err := l.sup.Register(proc); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return supervisor.RunningProcess{}, &SpawnError{Service: spec.Name, Err: err}
	}

	l.logger.Info("service started",
		zap.String("service", spec.Name),
		zap.Int("pid", proc.PID),
		zap.String("command", spec.CommandLine()),
		zap.String("dir", spec.Dir),
		zap.Stringer("output", spec.Output),
	)

	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s namedStream) {
			defer wg.Done()
			l.capture(spec.Name, s, sink)
		}(s)
	}

	go l.watch(cmd, proc, &wg)
	return proc, nil
}

type namedStream struct {
	name string
	r    io.Reader
}

// capture logs each line of s and copies it to sink.
func (l *Launcher) capture(service string, s namedStream, sink io.Writer) {
	scanner := bufio.NewScanner(s.r)
	// Increase buffer size for long lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	log := l.logger.With(zap.String("service", service), zap.String("stream", s.name))
	for scanner.Scan() {
		line := scanner.Text()
		log.Info(line)
		if sink != nil {
			_, _ = io.WriteString(sink, line+"\n")
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Warn("output capture stopped", zap.Error(err))
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, s.r)
	}
}

// watch reaps the process, logs how it ended and deregisters it.
func (l *Launcher) watch(cmd *exec.Cmd, proc supervisor.RunningProcess, captured *sync.WaitGroup) {
	captured.Wait()
	err := cmd.Wait()

	fields := []zap.Field{
		zap.String("service", proc.Service),
		zap.Int("pid", proc.PID),
		zap.Duration("uptime", time.Since(proc.StartedAt)),
	}
	if state := cmd.ProcessState; state != nil {
		fields = append(fields, zap.Int("exit_code", state.ExitCode()), zap.String("state", state.String()))
	}
	if err != nil {
		l.logger.Warn("service exited", append(fields, zap.Error(err))...)
	} else {
		l.logger.Info("service exited", fields...)
	}

	l.sup.Remove(proc.Service, proc.PID)
	if l.OnExit != nil {
		l.OnExit(proc.Service, proc.PID, err)
	}
}
