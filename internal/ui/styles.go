package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for the chat TUI
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, own name
	SuccessColor = lipgloss.Color("#43BF6D") // Green - joins, confirmations
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, departures
	MutedColor   = lipgloss.Color("#626262") // Gray - timestamps, hints
	TextColor    = lipgloss.Color("#FFFFFF") // White - message text
)

// Layout constants
const (
	MinTerminalWidth = 60 // Minimum supported terminal width
	DefaultHeight    = 24 // Fallback height when the terminal size is unknown
)

// Shared styles for the chat TUI
var (
	// HeaderStyle frames the title bar (server name, room id)
	HeaderStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			Padding(0, 1)

	// TimestampStyle is for the clock prefix on each chat line
	TimestampStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// UsernameStyle is for other members' names
	UsernameStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	// SystemStyle is for join/leave notices
	SystemStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Italic(true)

	// ErrorStyle is for server error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// HintStyle is for the footer help line
	HintStyle = lipgloss.NewStyle().
			Foreground(MutedColor)
)

// GetTerminalSize returns the current terminal width and height, with
// fallbacks for non-interactive environments
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, DefaultHeight
	}
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	return width, height
}
