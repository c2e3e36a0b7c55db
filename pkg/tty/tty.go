// Package tty centralizes terminal detection so styling and progress
// indicators degrade cleanly when output is piped or captured.
package tty

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// IsStdoutTerminal reports whether stdout is attached to a terminal.
// NO_COLOR is honored as a global opt-out for styled output.
func IsStdoutTerminal() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// IsStderrTerminal reports whether stderr is attached to a terminal.
func IsStderrTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// Width returns the terminal width for stdout, or the fallback when
// stdout is not a terminal or the size cannot be determined.
func Width(fallback int) int {
	if !IsStdoutTerminal() {
		return fallback
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
