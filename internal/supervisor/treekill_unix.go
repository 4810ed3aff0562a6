//go:build !windows

package supervisor

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

type signalTreeKiller struct{}

// DefaultKiller sends SIGTERM to the process group led by pid and then to any
// descendant that has moved to a group of its own.
func DefaultKiller() TreeKiller { return signalTreeKiller{} }

func (signalTreeKiller) KillTree(pid int) error {
	// Walk the tree before signalling; children reparent once the leader exits.
	descendants := descendantsOf(int32(pid))

	err := unix.Kill(-pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) || errors.Is(err, unix.EPERM) {
		// Not a group leader (or already gone); signal the process itself.
		err = unix.Kill(pid, unix.SIGTERM)
		if errors.Is(err, unix.ESRCH) {
			// Exited before its watcher deregistered it.
			err = nil
		}
	}

	for _, d := range descendants {
		if pgid, gerr := unix.Getpgid(d); gerr == nil && pgid == pid {
			continue
		}
		if kerr := unix.Kill(d, unix.SIGTERM); kerr != nil && !errors.Is(kerr, unix.ESRCH) && err == nil {
			err = kerr
		}
	}
	return err
}

// descendantsOf lists every live descendant of pid, depth first.
func descendantsOf(pid int32) []int {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	children, err := p.Children()
	if err != nil {
		return nil
	}

	var out []int
	for _, c := range children {
		out = append(out, int(c.Pid))
		out = append(out, descendantsOf(c.Pid)...)
	}
	return out
}
