package orchestrator

import (
	"os"
	"syscall"
)

var (
	quitSignals     = []os.Signal{os.Interrupt, syscall.SIGTERM}
	activateSignals []os.Signal
)
