//go:build !windows

package orchestrator

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshul/calcshell/internal/supervisor"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

type exitRecord struct {
	service string
	pid     int
}

func TestLauncherCapturesAndDeregisters(t *testing.T) {
	requireShell(t)
	sup := supervisor.New()
	t.Cleanup(func() { sup.TerminateAll() })

	sink := &syncBuffer{}
	exited := make(chan exitRecord, 1)
	l := NewLauncher(sup, nil)
	l.Sink = func(string) io.Writer { return sink }
	l.OnExit = func(service string, pid int, err error) { exited <- exitRecord{service, pid} }

	spec := newSpec(ServiceSpec{
		Name:    ServiceData,
		Command: "sh",
		Args:    []string{"-c", `echo "db=$DATABASE_PATH"; echo oops >&2; sleep 30`},
		Env:     []string{"DATABASE_PATH=/tmp/calc.db"},
		Output:  OutputCapture,
	})

	proc, err := l.Start(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, ServiceData, proc.Service)
	assert.Positive(t, proc.PID)

	got, ok := sup.Lookup(ServiceData)
	require.True(t, ok, "process must be registered before Start returns")
	assert.Equal(t, proc.PID, got.PID)

	require.Eventually(t, func() bool {
		out := sink.String()
		return strings.Contains(out, "db=/tmp/calc.db\n") && strings.Contains(out, "oops\n")
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, sup.TerminateAll())
	select {
	case rec := <-exited:
		assert.Equal(t, exitRecord{ServiceData, proc.PID}, rec)
	case <-time.After(5 * time.Second):
		t.Fatal("exit not observed")
	}
	assert.Empty(t, sup.Running())
}

func TestLauncherExitRemovesEntry(t *testing.T) {
	requireShell(t)
	sup := supervisor.New()
	exited := make(chan struct{})
	l := NewLauncher(sup, nil)
	l.Stdout, l.Stderr = io.Discard, io.Discard
	l.OnExit = func(string, int, error) { close(exited) }

	_, err := l.Start(context.Background(), newSpec(ServiceSpec{
		Name:    ServiceUI,
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
		Output:  OutputInherit,
	}))
	require.NoError(t, err)

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("exit not observed")
	}
	_, ok := sup.Lookup(ServiceUI)
	assert.False(t, ok)
}

func TestLauncherExecutableNotFound(t *testing.T) {
	sup := supervisor.New()
	l := NewLauncher(sup, nil)

	_, err := l.Start(context.Background(), newSpec(ServiceSpec{
		Name:    ServiceData,
		Command: "calcshell-no-such-interpreter",
		Output:  OutputCapture,
	}))
	require.Error(t, err)
	var se *SpawnError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ServiceData, se.Service)
	assert.ErrorIs(t, err, ErrExecutableNotFound)
	assert.Empty(t, sup.Running())
}

func TestLauncherRejectsSecondInstance(t *testing.T) {
	requireShell(t)
	sup := supervisor.New()
	t.Cleanup(func() { sup.TerminateAll() })
	l := NewLauncher(sup, nil)

	spec := newSpec(ServiceSpec{Name: ServiceData, Command: "sh", Args: []string{"-c", "sleep 30"}, Output: OutputCapture})
	first, err := l.Start(context.Background(), spec)
	require.NoError(t, err)

	_, err = l.Start(context.Background(), spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, supervisor.ErrAlreadyRunning)

	running := sup.Running()
	require.Len(t, running, 1)
	assert.Equal(t, first.PID, running[0].PID)
}

func TestLauncherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLauncher(supervisor.New(), nil).Start(ctx, newSpec(ServiceSpec{Name: ServiceUI, Command: "sh"}))
	assert.ErrorIs(t, err, context.Canceled)
}
