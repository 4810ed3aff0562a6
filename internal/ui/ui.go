package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Out receives the user-facing progress lines.
var Out io.Writer = os.Stdout

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"})
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#AA7700", Dark: "#FFCC00"})
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#AA0000", Dark: "#FF5555"}).
			Bold(true)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666", Dark: "#999"})
)

func Success(msg string) {
	fmt.Fprintln(Out, "✅", msg)
}

func Info(msg string) {
	fmt.Fprintln(Out, "ℹ️ ", msg)
}

func Warn(msg string) {
	fmt.Fprintln(Out, "⚠️ ", warnStyle.Render(msg))
}

func Error(msg string) {
	fmt.Fprintln(Out, "❌", errorStyle.Render(msg))
}

// PrintHeader prints a section title.
func PrintHeader(title string) {
	fmt.Fprintln(Out)
	fmt.Fprintln(Out, headerStyle.Render(title))
}

// PrintKV prints an indented key/value line.
func PrintKV(k, v string) {
	fmt.Fprintf(Out, "   %s %s\n", mutedStyle.Render(k+":"), v)
}
