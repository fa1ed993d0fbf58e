package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorGood   = 114 // green
	colorBad    = 174 // red
)

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorCmd, s)
}

// RenderOutcome colors a final status: approved green, rejected red,
// anything else muted.
func RenderOutcome(status string) string {
	if noColor {
		return status
	}
	switch status {
	case "approved":
		return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorGood, status)
	case "rejected":
		return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorBad, status)
	default:
		return RenderMuted(status)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
