//go:build windows

package supervisor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type taskkillTreeKiller struct{}

// DefaultKiller force-kills the tree rooted at pid with taskkill.
func DefaultKiller() TreeKiller { return taskkillTreeKiller{} }

func (taskkillTreeKiller) KillTree(pid int) error {
	out, err := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
