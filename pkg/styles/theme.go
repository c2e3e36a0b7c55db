// Package styles provides centralized style and color definitions for terminal output.
// It uses lipgloss.AdaptiveColor to adapt colors to the terminal background,
// ensuring readability in both light and dark themes.
package styles

import "github.com/charmbracelet/lipgloss"

// Adaptive colors that work well in both light and dark terminal themes.
var (
	// ColorError is used for error messages and Critical findings.
	ColorError = lipgloss.AdaptiveColor{
		Light: "#D73737",
		Dark:  "#FF5555",
	}

	// ColorWarning is used for warnings and High/Medium findings.
	ColorWarning = lipgloss.AdaptiveColor{
		Light: "#E67E22",
		Dark:  "#FFB86C",
	}

	// ColorSuccess is used for success messages and healthy grades.
	ColorSuccess = lipgloss.AdaptiveColor{
		Light: "#27AE60",
		Dark:  "#50FA7B",
	}

	// ColorInfo is used for informational messages and Info findings.
	ColorInfo = lipgloss.AdaptiveColor{
		Light: "#2980B9",
		Dark:  "#8BE9FD",
	}

	// ColorAccent is used for file paths, job ids, and commands.
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#8E44AD",
		Dark:  "#BD93F9",
	}

	// ColorMuted is used for secondary information like line numbers.
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#6C7A89",
		Dark:  "#6272A4",
	}
)

var (
	Error   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Info    = lipgloss.NewStyle().Foreground(ColorInfo)
	Accent  = lipgloss.NewStyle().Foreground(ColorAccent)
	Muted   = lipgloss.NewStyle().Foreground(ColorMuted)
	Header  = lipgloss.NewStyle().Bold(true).Underline(true)
)
