package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ColorDisabled reports whether styling should be suppressed: NO_COLOR is
// set, or f is not a terminal.
func ColorDisabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	fd := f.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// ApplyColor switches lipgloss to plain output when force is set or
// ColorDisabled(f) holds. It returns whether color stays enabled.
func ApplyColor(f *os.File, force bool) bool {
	if force || ColorDisabled(f) {
		lipgloss.SetColorProfile(termenv.Ascii)
		return false
	}
	return true
}
