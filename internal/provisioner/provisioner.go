package provisioner

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/harshul/calcshell/internal/mode"
)

// DataFileName is the data service's SQLite file, both in the bundle and in
// the writable tree.
const DataFileName = "calculator.db"

// DefaultBundledFiles are the data-service sources seeded into the writable
// working directory in Packaged mode.
var DefaultBundledFiles = []string{
	"main.py",
	"routes.py",
	"models.py",
	"database.py",
	"pyproject.toml",
}

// Layout holds the roots every other path is derived from.
type Layout struct {
	// AppRoot is the source tree in Development and the application payload in Packaged mode.
	AppRoot string
	// ResourcesDir holds read-only bundled resources (template data file, unpacked payload).
	ResourcesDir string
	// UserDataDir is the per-user writable application-data directory.
	UserDataDir string
}

// RuntimePaths is every filesystem location the supervisor hands to its services.
// Fields that do not apply to a mode are left empty.
type RuntimePaths struct {
	Mode            mode.Mode
	DataServiceDir  string
	UIServiceDir    string // Development only
	UIStandaloneDir string // Packaged only
	UIWritableDir   string // Packaged only
	UICacheDir      string // Packaged only
	DataFile        string
	TemplateFile    string // Packaged only
	BundledSrcDir   string // Packaged only
	VenvDir         string
	LogDir          string
	TempDir         string
}

// ProvisioningError reports a writable path that could not be created or seeded.
// It is fatal: no service can persist state without it.
type ProvisioningError struct {
	Op   string
	Path string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// IsProvisioningError reports whether err is (or wraps) a ProvisioningError.
func IsProvisioningError(err error) bool {
	var pe *ProvisioningError
	return errors.As(err, &pe)
}

// Resolver computes and provisions RuntimePaths for a mode.
type Resolver struct {
	layout       Layout
	bundledFiles []string
	logger       *zap.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithBundledFiles overrides the list of data-service files seeded in Packaged mode.
func WithBundledFiles(files []string) Option {
	return func(r *Resolver) {
		r.bundledFiles = append([]string(nil), files...)
	}
}

// WithLogger sets the logger used for skipped-seed warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver over the given layout.
func NewResolver(layout Layout, opts ...Option) *Resolver {
	r := &Resolver{
		layout:       layout,
		bundledFiles: append([]string(nil), DefaultBundledFiles...),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout returns the roots this resolver works from.
func (r *Resolver) Layout() Layout {
	return r.layout
}

// Resolve computes the paths for m and provisions them. Running it again on the
// same directories yields the same paths and leaves seeded files untouched.
func (r *Resolver) Resolve(m mode.Mode) (RuntimePaths, error) {
	s, err := r.strategyFor(m)
	if err != nil {
		return RuntimePaths{}, err
	}

	paths := s.paths(r.layout)
	if err := s.provision(paths); err != nil {
		return RuntimePaths{}, err
	}
	return paths, nil
}

// Paths computes the paths for m without touching the filesystem.
func (r *Resolver) Paths(m mode.Mode) (RuntimePaths, error) {
	s, err := r.strategyFor(m)
	if err != nil {
		return RuntimePaths{}, err
	}
	return s.paths(r.layout), nil
}

// pathStrategy is the per-mode half of the resolver.
type pathStrategy interface {
	paths(l Layout) RuntimePaths
	provision(p RuntimePaths) error
}

func (r *Resolver) strategyFor(m mode.Mode) (pathStrategy, error) {
	switch m {
	case mode.Development:
		return devPaths{}, nil
	case mode.Packaged:
		return packagedPaths{
			bundledFiles: r.bundledFiles,
			logger:       r.logger,
		}, nil
	}
	return nil, fmt.Errorf("cannot resolve paths for %s", m)
}

// devPaths points straight into the source tree.
type devPaths struct{}

func (devPaths) paths(l Layout) RuntimePaths {
	backend := filepath.Join(l.AppRoot, "backend")
	state := filepath.Join(l.AppRoot, ".calcshell")
	return RuntimePaths{
		Mode:           mode.Development,
		DataServiceDir: backend,
		UIServiceDir:   filepath.Join(l.AppRoot, "frontend"),
		DataFile:       filepath.Join(backend, DataFileName),
		VenvDir:        filepath.Join(backend, "myvenv"),
		LogDir:         filepath.Join(state, "logs"),
		TempDir:        filepath.Join(state, "tmp"),
	}
}

func (devPaths) provision(p RuntimePaths) error {
	return ensureDirs(p.LogDir, p.TempDir)
}

// packagedPaths points into the per-user writable tree and seeds it on first run.
type packagedPaths struct {
	bundledFiles []string
	logger       *zap.Logger
}

func (packagedPaths) paths(l Layout) RuntimePaths {
	unpacked := filepath.Join(l.ResourcesDir, "app.asar.unpacked")
	backend := filepath.Join(l.UserDataDir, "backend")
	frontend := filepath.Join(l.UserDataDir, "frontend")

	standalone := filepath.Join(unpacked, "frontend", ".next", "standalone")
	if !exists(standalone) {
		standalone = filepath.Join(l.AppRoot, "frontend", ".next", "standalone")
	}

	return RuntimePaths{
		Mode:            mode.Packaged,
		DataServiceDir:  backend,
		UIStandaloneDir: standalone,
		UIWritableDir:   frontend,
		UICacheDir:      filepath.Join(frontend, ".next", "cache"),
		DataFile:        filepath.Join(backend, DataFileName),
		TemplateFile:    filepath.Join(l.ResourcesDir, "sqlite-template", DataFileName),
		BundledSrcDir:   filepath.Join(l.AppRoot, "backend"),
		VenvDir:         filepath.Join(unpacked, "backend", "prod-venv"),
		LogDir:          filepath.Join(l.UserDataDir, "logs"),
		TempDir:         filepath.Join(l.UserDataDir, "tmp"),
	}
}

func (s packagedPaths) provision(p RuntimePaths) error {
	if err := ensureDirs(p.DataServiceDir, p.LogDir, p.TempDir, p.UIWritableDir, p.UICacheDir); err != nil {
		return err
	}

	seeded, err := seedFile(p.TemplateFile, p.DataFile)
	if err != nil {
		return err
	}
	switch {
	case seeded:
		s.logger.Info("seeded data file from template", zap.String("template", p.TemplateFile), zap.String("dest", p.DataFile))
	case !exists(p.TemplateFile) && !exists(p.DataFile):
		s.logger.Warn("no template data file bundled; data service will create its own", zap.String("template", p.TemplateFile))
	}

	for _, name := range s.bundledFiles {
		from := filepath.Join(p.BundledSrcDir, name)
		if !exists(from) {
			s.logger.Warn("bundled service file missing", zap.String("file", from))
			continue
		}
		if _, err := seedFile(from, filepath.Join(p.DataServiceDir, name)); err != nil {
			return err
		}
	}
	return nil
}
