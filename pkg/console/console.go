// Package console renders user-facing messages and error banners.
// All styling is disabled when stdout is not a terminal so piped output
// stays machine-friendly.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pipelinex/pipelinex/pkg/logger"
	"github.com/pipelinex/pipelinex/pkg/styles"
	"github.com/pipelinex/pipelinex/pkg/tty"
)

var consoleLog = logger.New("console:console")

// ErrorPosition represents a position in a source file
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// Diagnostic is a structured error or warning with position information,
// rendered in a Rust-like banner format.
type Diagnostic struct {
	Position ErrorPosition
	Type     string // "error", "warning", "info"
	Message  string
	Context  []string // Source lines around the position
	Hint     string
}

// applyStyle conditionally applies styling based on TTY status
func applyStyle(style lipgloss.Style, text string) string {
	if tty.IsStdoutTerminal() {
		return style.Render(text)
	}
	return text
}

// ToRelativePath converts an absolute path to a path relative to the
// current working directory, for compact diagnostics.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return rel
}

// FormatDiagnostic renders a Diagnostic banner with position and context.
func FormatDiagnostic(d Diagnostic) string {
	consoleLog.Printf("rendering diagnostic: type=%s file=%s line=%d", d.Type, d.Position.File, d.Position.Line)

	var typeStyle lipgloss.Style
	prefix := d.Type
	switch d.Type {
	case "warning":
		typeStyle = styles.Warning
	case "info":
		typeStyle = styles.Info
	default:
		typeStyle = styles.Error
		prefix = "error"
	}

	var out strings.Builder
	out.WriteString(applyStyle(typeStyle, prefix))
	out.WriteString(applyStyle(styles.Header, ": "+d.Message))
	out.WriteByte('\n')

	if d.Position.File != "" {
		loc := ToRelativePath(d.Position.File)
		if d.Position.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, d.Position.Line)
			if d.Position.Column > 0 {
				loc = fmt.Sprintf("%s:%d", loc, d.Position.Column)
			}
		}
		out.WriteString(applyStyle(styles.Muted, "  --> "))
		out.WriteString(applyStyle(styles.Accent, loc))
		out.WriteByte('\n')
	}

	for i, line := range d.Context {
		lineNo := d.Position.Line - len(d.Context)/2 + i
		if lineNo < 1 {
			lineNo = i + 1
		}
		out.WriteString(applyStyle(styles.Muted, fmt.Sprintf("%4d | ", lineNo)))
		out.WriteString(line)
		out.WriteByte('\n')
	}

	if d.Hint != "" {
		out.WriteString(applyStyle(styles.Info, "hint: "))
		out.WriteString(d.Hint)
		out.WriteByte('\n')
	}
	return out.String()
}

// FormatSuccessMessage formats a success message with styling
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message with styling
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, message)
}

// FormatWarningMessage formats a warning message with styling
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "! ") + message
}

// FormatErrorMessage formats a simple error message (for stderr output)
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// FormatProgressMessage formats a progress message with styling
func FormatProgressMessage(message string) string {
	return applyStyle(styles.Muted, "… ") + message
}

// FormatCommandMessage formats a command or fix suggestion
func FormatCommandMessage(command string) string {
	return applyStyle(styles.Accent, "$ "+command)
}

// FormatListHeader formats a list section header
func FormatListHeader(header string) string {
	return applyStyle(styles.Header, header)
}

// FormatListItem formats a single list item
func FormatListItem(item string) string {
	return "  • " + item
}
