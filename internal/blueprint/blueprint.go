package blueprint

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working directory.
const DefaultFileName = ".calcshell.yaml"

// Window kinds.
const (
	WindowTUI     = "tui"
	WindowBrowser = "browser"
)

// Blueprint is the shell's configuration file.
type Blueprint struct {
	Name         string   `yaml:"name"`
	Services     Services `yaml:"services"`
	Window       Window   `yaml:"window"`
	Bridge       Bridge   `yaml:"bridge"`
	Probe        Probe    `yaml:"probe"`
	Layout       Layout   `yaml:"layout,omitempty"`
	BundledFiles []string `yaml:"bundled_files,omitempty"`
}

// Services configures the two child services.
type Services struct {
	Data Service `yaml:"data"`
	UI   Service `yaml:"ui"`
}

// Service is one child service's network contract.
type Service struct {
	Port int `yaml:"port"`
	// Readiness is a wait target: "tcp:host:port" or an http(s) URL.
	Readiness string        `yaml:"readiness"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Window configures the shell window.
type Window struct {
	Kind   string `yaml:"kind,omitempty"` // tui or browser; empty picks by mode
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// QuitOnClose quits the shell when the last window closes. Unset means
	// quit everywhere except macOS.
	QuitOnClose *bool `yaml:"quit_on_close,omitempty"`
}

// Bridge configures the status bridge endpoint.
type Bridge struct {
	Listen string `yaml:"listen"` // empty disables the HTTP endpoint
	Live   bool   `yaml:"live"`
}

// Probe configures readiness polling.
type Probe struct {
	Interval time.Duration `yaml:"interval"`
}

// Layout overrides the directories the shell resolves its paths from.
type Layout struct {
	AppRoot   string `yaml:"app_root,omitempty"`
	Resources string `yaml:"resources,omitempty"`
	UserData  string `yaml:"user_data,omitempty"`
}

// Default returns the stock configuration.
func Default() Blueprint {
	return Blueprint{
		Name: "calculator",
		Services: Services{
			Data: Service{Port: 8000, Readiness: "tcp:127.0.0.1:8000", Timeout: 20 * time.Second},
			UI:   Service{Port: 3000, Readiness: "http://localhost:3000", Timeout: 30 * time.Second},
		},
		Window: Window{Width: 1200, Height: 800},
		Bridge: Bridge{Listen: "127.0.0.1:3001"},
		Probe:  Probe{Interval: 250 * time.Millisecond},
	}
}

// ShouldQuitOnClose resolves the quit-on-close policy for this platform.
func (w Window) ShouldQuitOnClose() bool {
	if w.QuitOnClose != nil {
		return *w.QuitOnClose
	}
	return runtime.GOOS != "darwin"
}

// Validate reports configuration values the shell cannot run with.
func (bp Blueprint) Validate() error {
	var errs []error
	if bp.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	for _, named := range []struct {
		name string
		Service
	}{{"data", bp.Services.Data}, {"ui", bp.Services.UI}} {
		name, s := named.name, named.Service
		if s.Port <= 0 || s.Port > 65535 {
			errs = append(errs, fmt.Errorf("services.%s.port %d out of range", name, s.Port))
		}
		if s.Readiness == "" {
			errs = append(errs, fmt.Errorf("services.%s.readiness is empty", name))
		}
		if s.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("services.%s.timeout must be positive", name))
		}
	}
	switch bp.Window.Kind {
	case "", WindowTUI, WindowBrowser:
	default:
		errs = append(errs, fmt.Errorf("window.kind %q is not tui or browser", bp.Window.Kind))
	}
	if bp.Probe.Interval <= 0 {
		errs = append(errs, errors.New("probe.interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Write writes the blueprint as a YAML file.
func Write(path string, bp Blueprint) error {
	data, err := yaml.Marshal(&bp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read reads a YAML file over the defaults. Fields the file leaves out keep
// their default values.
func Read(path string) (Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blueprint{}, err
	}

	bp := Default()
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return Blueprint{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := bp.Validate(); err != nil {
		return Blueprint{}, err
	}
	return bp, nil
}

// Load reads path, falling back to the defaults when the file does not exist.
func Load(path string) (Blueprint, error) {
	bp, err := Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return bp, err
}
