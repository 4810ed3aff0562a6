package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/harshul/calcshell/internal/blueprint"
	"github.com/harshul/calcshell/internal/mode"
	"github.com/harshul/calcshell/internal/ports"
	"github.com/harshul/calcshell/internal/provisioner"
	"github.com/harshul/calcshell/internal/seed"
)

// RuntimeStatus represents the status of a runtime check
type RuntimeStatus struct {
	Name      string
	Installed bool
	Version   string
	Path      string
}

// FileStatus is a file or directory the shell expects to find.
type FileStatus struct {
	Label  string
	Path   string
	Exists bool
	Detail string
}

// PortStatus is one service port.
type PortStatus struct {
	Service   string
	Port      int
	Available bool
	PID       int    // owning process, 0 when unknown
	Suggested int    // next free port, 0 when none was found
	Summary   string // human-readable line from ports.GetPortStatus
}

// Diagnosis contains the full health check results
type Diagnosis struct {
	Mode     mode.Mode
	Runtimes []RuntimeStatus
	Files    []FileStatus
	Ports    []PortStatus
	Data     *seed.Info // nil when no data file exists yet
	Healthy  bool
	Issues   []string
	Warnings []string
}

// Checker runs the checks. Its hooks exist for tests.
type Checker struct {
	LookPath func(string) (string, error)
	Version  func(path string, args ...string) (string, error)
	Port     func(port int) PortStatus
	Timeout  time.Duration
}

// Diagnose checks everything the shell needs to start in mode m.
func Diagnose(m mode.Mode, p provisioner.RuntimePaths, bp blueprint.Blueprint) Diagnosis {
	return NewChecker().Diagnose(m, p, bp)
}

// NewChecker returns a Checker that inspects the real system.
func NewChecker() *Checker {
	return &Checker{
		LookPath: exec.LookPath,
		Version:  commandVersion,
		Port:     checkPort,
		Timeout:  5 * time.Second,
	}
}

// Diagnose checks the tools, files, ports and data file for mode m.
func (c *Checker) Diagnose(m mode.Mode, p provisioner.RuntimePaths, bp blueprint.Blueprint) Diagnosis {
	d := Diagnosis{Mode: m, Healthy: true, Issues: []string{}}

	switch m {
	case mode.Development:
		c.checkDevelopment(&d, p)
	case mode.Packaged:
		c.checkPackaged(&d, p)
	default:
		d.fail(fmt.Sprintf("unknown mode %s", m))
		return d
	}

	for _, svc := range []struct {
		name string
		port int
	}{
		{"data", bp.Services.Data.Port},
		{"ui", bp.Services.UI.Port},
	} {
		if svc.port <= 0 {
			continue
		}
		st := c.Port(svc.port)
		st.Service = svc.name
		d.Ports = append(d.Ports, st)
		if !st.Available {
			msg := st.Summary
			if st.Suggested > 0 {
				msg += fmt.Sprintf(" (port %d is free)", st.Suggested)
			}
			d.fail(msg)
		}
	}

	c.checkData(&d, p)
	return d
}

func (c *Checker) checkDevelopment(d *Diagnosis, p provisioner.RuntimePaths) {
	shell := "bash"
	if runtime.GOOS == "windows" {
		shell = "cmd"
	}
	for _, tool := range []string{shell, "poetry", "npm"} {
		st := c.runtimeStatus(tool, tool)
		d.Runtimes = append(d.Runtimes, st)
		if !st.Installed {
			d.fail(tool + " is not installed")
		}
	}

	activate := filepath.Join(p.VenvDir, "bin", "activate")
	if runtime.GOOS == "windows" {
		activate = filepath.Join(p.VenvDir, "Scripts", "activate.bat")
	}
	d.file("virtualenv", activate, false)
	d.file("data service", filepath.Join(p.DataServiceDir, "main.py"), true)
	d.file("ui service", filepath.Join(p.UIServiceDir, "package.json"), true)
}

func (c *Checker) checkPackaged(d *Diagnosis, p provisioner.RuntimePaths) {
	// Bundled interpreter first, then whatever is on PATH.
	python := RuntimeStatus{Name: "python"}
	for _, candidate := range []string{
		filepath.Join(p.VenvDir, "bin", "python3"),
		filepath.Join(p.VenvDir, "bin", "python"),
		filepath.Join(p.VenvDir, "Scripts", "python.exe"),
	} {
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			python = c.versionOf("python", candidate)
			break
		}
	}
	if !python.Installed {
		for _, name := range []string{"python3", "python"} {
			if st := c.runtimeStatus("python", name); st.Installed {
				python = st
				d.warn("bundled interpreter missing, using " + st.Path)
				break
			}
		}
	}
	d.Runtimes = append(d.Runtimes, python)
	if !python.Installed {
		d.fail("no python interpreter found in " + p.VenvDir + " or on PATH")
	}

	node := c.runtimeStatus("node", "node")
	d.Runtimes = append(d.Runtimes, node)
	if !node.Installed {
		d.fail("node is not installed")
	}

	d.file("standalone server", filepath.Join(p.UIStandaloneDir, "server.js"), true)
	d.file("data service sources", filepath.Join(p.BundledSrcDir, "main.py"), false)
}

func (c *Checker) checkData(d *Diagnosis, p provisioner.RuntimePaths) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	if p.TemplateFile != "" {
		if _, err := os.Stat(p.TemplateFile); err != nil {
			d.warn("no template data file at " + p.TemplateFile)
		} else if _, err := seed.Verify(ctx, p.TemplateFile); err != nil {
			d.fail(fmt.Sprintf("template data file is damaged: %v", err))
		}
	}

	if p.DataFile == "" {
		return
	}
	info, err := seed.Verify(ctx, p.DataFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		d.warn("data file not created yet: " + p.DataFile)
	case err != nil:
		d.fail(fmt.Sprintf("data file %s: %v", p.DataFile, err))
	default:
		d.Data = &info
		if !info.HasTable {
			d.warn("data file has no " + seed.Table + " table yet")
		}
	}
}

// runtimeStatus finds name on PATH and asks it for a version.
func (c *Checker) runtimeStatus(label, name string) RuntimeStatus {
	path, err := c.LookPath(name)
	if err != nil {
		return RuntimeStatus{Name: label}
	}
	return c.versionOf(label, path)
}

func (c *Checker) versionOf(label, path string) RuntimeStatus {
	status := RuntimeStatus{Name: label, Path: path, Installed: true}
	if filepath.Base(path) == "cmd" || filepath.Base(path) == "cmd.exe" {
		return status
	}
	if v, err := c.Version(path, "--version"); err == nil {
		status.Version = v
	}
	return status
}

func (d *Diagnosis) fail(issue string) {
	d.Healthy = false
	d.Issues = append(d.Issues, issue)
}

func (d *Diagnosis) warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

func (d *Diagnosis) file(label, path string, required bool) {
	st := FileStatus{Label: label, Path: path}
	if _, err := os.Stat(path); err == nil {
		st.Exists = true
	} else {
		st.Detail = "missing"
		if required {
			d.fail(label + " not found at " + path)
		} else {
			d.warn(label + " not found at " + path)
		}
	}
	d.Files = append(d.Files, st)
}

// commandVersion returns the first line the command prints.
// Some tools (python2, java) print their version to stderr.
func commandVersion(path string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line), nil
}

func checkPort(port int) PortStatus {
	st := PortStatus{Port: port, Available: ports.IsPortAvailable(port), Summary: ports.GetPortStatus(port)}
	if !st.Available {
		st.PID = ports.GetProcessOnPort(port)
		st.Suggested = ports.FindAvailablePort(port + 1)
	}
	return st
}
