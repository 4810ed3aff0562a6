package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/harshul/calcshell/internal/mode"
	"github.com/harshul/calcshell/internal/ports"
	"github.com/harshul/calcshell/internal/provisioner"
)

// Endpoints is the network contract of the two services.
type Endpoints struct {
	Data   ports.Target
	UI     ports.Target
	UIPort int
	UIHost string
}

// CommandBuilder turns resolved paths into launch specs for one mode.
type CommandBuilder interface {
	DataService(p provisioner.RuntimePaths) (ServiceSpec, error)
	UIService(p provisioner.RuntimePaths) (ServiceSpec, error)
}

// NewCommandBuilder returns the builder for m. It is the only place the
// launch command lines branch on mode.
func NewCommandBuilder(m mode.Mode, ep Endpoints) (CommandBuilder, error) {
	if ep.UIHost == "" {
		ep.UIHost = "localhost"
	}
	switch m {
	case mode.Development:
		return devCommands{endpoints: ep, goos: runtime.GOOS}, nil
	case mode.Packaged:
		return packagedCommands{endpoints: ep, goos: runtime.GOOS, lookPath: exec.LookPath}, nil
	}
	return nil, fmt.Errorf("no command builder for %s", m)
}

// dataServiceEnv points the data service at the shell-controlled paths.
func dataServiceEnv(p provisioner.RuntimePaths) []string {
	return append([]string{
		"DATABASE_PATH=" + p.DataFile,
		"LOGS_PATH=" + p.LogDir,
	}, tempEnv(p.TempDir)...)
}

func tempEnv(dir string) []string {
	return []string{"TMPDIR=" + dir, "TMP=" + dir, "TEMP=" + dir}
}

// devCommands runs both services from the source tree with the developer's
// own tooling.
type devCommands struct {
	endpoints Endpoints
	goos      string
}

func (d devCommands) DataService(p provisioner.RuntimePaths) (ServiceSpec, error) {
	spec := ServiceSpec{
		Name:      ServiceData,
		Dir:       p.DataServiceDir,
		Env:       dataServiceEnv(p),
		Output:    OutputInherit,
		Readiness: d.endpoints.Data,
		Mode:      mode.Development,
	}
	if d.goos == "windows" {
		activate := filepath.Join(p.VenvDir, "Scripts", "activate.bat")
		spec.Command = "cmd"
		// Separate tokens; cmd.exe cannot parse Go's \" escaping.
		spec.Args = []string{"/C", activate, "&&", "poetry", "run", "python", "main.py"}
	} else {
		activate := filepath.Join(p.VenvDir, "bin", "activate")
		spec.Command = "bash"
		spec.Args = []string{"-c", "source " + shellQuote(activate) + " && poetry run python3 main.py"}
	}
	return newSpec(spec), nil
}

func (d devCommands) UIService(p provisioner.RuntimePaths) (ServiceSpec, error) {
	return newSpec(ServiceSpec{
		Name:      ServiceUI,
		Command:   "npm",
		Args:      []string{"run", "dev"},
		Dir:       p.UIServiceDir,
		Output:    OutputInherit,
		Readiness: d.endpoints.UI,
		Mode:      mode.Development,
	}), nil
}

// packagedCommands runs the bundled interpreter and the prebuilt standalone
// UI server.
type packagedCommands struct {
	endpoints Endpoints
	goos      string
	lookPath  func(string) (string, error)
}

func (c packagedCommands) DataService(p provisioner.RuntimePaths) (ServiceSpec, error) {
	python, err := c.interpreter(p.VenvDir)
	if err != nil {
		return ServiceSpec{}, &SpawnError{Service: ServiceData, Err: err}
	}
	return newSpec(ServiceSpec{
		Name:      ServiceData,
		Command:   python,
		Args:      []string{"main.py"},
		Dir:       p.DataServiceDir,
		Env:       dataServiceEnv(p),
		Output:    OutputCapture,
		Readiness: c.endpoints.Data,
		Mode:      mode.Packaged,
	}), nil
}

func (c packagedCommands) UIService(p provisioner.RuntimePaths) (ServiceSpec, error) {
	server := filepath.Join(p.UIStandaloneDir, "server.js")
	if !isFile(server) {
		return ServiceSpec{}, &SpawnError{Service: ServiceUI, Err: fmt.Errorf("standalone server not found at %s", server)}
	}
	node, err := c.lookPath("node")
	if err != nil {
		return ServiceSpec{}, &SpawnError{Service: ServiceUI, Err: fmt.Errorf("%w: node", ErrExecutableNotFound)}
	}

	env := append([]string{
		"PORT=" + strconv.Itoa(c.endpoints.UIPort),
		"HOSTNAME=" + c.endpoints.UIHost,
		"NEXT_CACHE=" + p.UICacheDir,
	}, tempEnv(p.TempDir)...)

	return newSpec(ServiceSpec{
		Name:      ServiceUI,
		Command:   node,
		Args:      []string{server},
		Dir:       p.UIStandaloneDir,
		Env:       env,
		Output:    OutputCapture,
		Readiness: c.endpoints.UI,
		Mode:      mode.Packaged,
	}), nil
}

// interpreter probes the bundled venv, then falls back to PATH.
func (c packagedCommands) interpreter(venv string) (string, error) {
	candidates := []string{
		filepath.Join(venv, "bin", "python3"),
		filepath.Join(venv, "bin", "python"),
		filepath.Join(venv, "Scripts", "python.exe"),
	}
	for _, candidate := range candidates {
		if isFile(candidate) {
			return candidate, nil
		}
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := c.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no python interpreter in %s or on PATH", ErrExecutableNotFound, venv)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
