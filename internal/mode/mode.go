package mode

import "fmt"

// Mode is the execution context of the shell. It is selected once at startup
// and never changes for the lifetime of the process.
type Mode int

const (
	// Development runs the services straight from the source tree.
	Development Mode = iota + 1
	// Packaged runs the services from the bundled payload with per-user writable state.
	Packaged
)

// FromFlag maps the --dev launch flag to a Mode.
func FromFlag(dev bool) Mode {
	if dev {
		return Development
	}
	return Packaged
}

// String implements fmt.Stringer
func (m Mode) String() string {
	switch m {
	case Development:
		return "development"
	case Packaged:
		return "packaged"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the two known modes.
func (m Mode) Valid() bool {
	return m == Development || m == Packaged
}

// Parse converts a mode name back into a Mode.
func Parse(s string) (Mode, error) {
	switch s {
	case "development", "dev":
		return Development, nil
	case "packaged", "production", "prod":
		return Packaged, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want development or packaged)", s)
}
