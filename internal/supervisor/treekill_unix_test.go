//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSleeper(t *testing.T) *exec.Cmd {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { cmd.Process.Kill() })
	return cmd
}

func waitExit(t *testing.T, cmd *exec.Cmd) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("pid %d still running after termination", cmd.Process.Pid)
		return nil
	}
}

func TestTerminateAllKillsRealProcesses(t *testing.T) {
	data := startSleeper(t)
	ui := startSleeper(t)

	s := New()
	require.NoError(t, s.Register(RunningProcess{Service: "data", PID: data.Process.Pid}))
	require.NoError(t, s.Register(RunningProcess{Service: "ui", PID: ui.Process.Pid}))

	require.NoError(t, s.TerminateAll())

	for _, cmd := range []*exec.Cmd{data, ui} {
		err := waitExit(t, cmd)
		var exitErr *exec.ExitError
		require.ErrorAs(t, err, &exitErr)
		status := exitErr.Sys().(syscall.WaitStatus)
		assert.True(t, status.Signaled())
		assert.Equal(t, syscall.SIGTERM, status.Signal())
	}

	assert.NoError(t, s.TerminateAll())
}

func TestKillTreeReachesShellChildren(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cmd := exec.Command("sh", "-c", "sleep 30 & wait")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { cmd.Process.Kill() })

	require.NoError(t, DefaultKiller().KillTree(cmd.Process.Pid))
	assert.Error(t, waitExit(t, cmd))
}

func TestKillTreeAlreadyExited(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	cmd := exec.Command("true")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Run())

	assert.NoError(t, DefaultKiller().KillTree(cmd.Process.Pid))

	s := New()
	require.NoError(t, s.Register(RunningProcess{Service: "data", PID: cmd.Process.Pid}))
	assert.NoError(t, s.TerminateAll(), "a process gone before its watcher ran is not a failure")
}
