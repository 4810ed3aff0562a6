//go:build !windows

package orchestrator

import (
	"os"

	"golang.org/x/sys/unix"
)

var (
	quitSignals     = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP}
	activateSignals = []os.Signal{unix.SIGUSR1}
)
