package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether CLI output should carry ANSI colors.
// NO_COLOR (any value, per https://no-color.org), CLICOLOR_FORCE=1 and
// CLICOLOR=0 take precedence, in that order; otherwise color follows stdout
// being a terminal.
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
