package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harshul/calcshell/internal/mode"
	"github.com/harshul/calcshell/internal/ports"
)

// Service names.
const (
	ServiceData = "data"
	ServiceUI   = "ui"
)

// OutputPolicy says where a child's stdout and stderr go.
type OutputPolicy int

const (
	// OutputInherit hands the shell's own console to the child.
	OutputInherit OutputPolicy = iota + 1
	// OutputCapture splits the child's output into log lines.
	OutputCapture
)

func (o OutputPolicy) String() string {
	switch o {
	case OutputInherit:
		return "inherit"
	case OutputCapture:
		return "capture"
	}
	return fmt.Sprintf("output(%d)", int(o))
}

// ServiceSpec describes how to launch one service. Build it with newSpec so the
// slices are private copies; treat it as read-only afterwards.
type ServiceSpec struct {
	Name      string
	Command   string
	Args      []string
	Dir       string
	Env       []string // KEY=VALUE overrides, sorted
	Output    OutputPolicy
	Readiness ports.Target
	Mode      mode.Mode
}

func newSpec(s ServiceSpec) ServiceSpec {
	s.Args = append([]string(nil), s.Args...)
	s.Env = append([]string(nil), s.Env...)
	sort.Strings(s.Env)
	return s
}

// CommandLine renders the command for logs.
func (s ServiceSpec) CommandLine() string {
	return strings.Join(append([]string{s.Command}, s.Args...), " ")
}

// ErrExecutableNotFound is wrapped by SpawnError when no interpreter or
// runtime binary could be located.
var ErrExecutableNotFound = errors.New("executable not found")

// SpawnError reports a service that could not be started. It is never fatal
// to the shell.
type SpawnError struct {
	Service string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s service: %v", e.Service, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
