package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsAgentMode reports whether babel is driven by a coding agent rather than a
// human. Agents get plain, stable output: no glamour rendering, no pager.
func IsAgentMode() bool {
	return os.Getenv("BABEL_AGENT_MODE") != ""
}

// ShouldUseColor decides whether output gets ANSI color. Precedence follows
// the informal spec at no-color.org and bixense.com/clicolors:
//
//	NO_COLOR non-empty      -> never
//	CLICOLOR_FORCE set      -> always, even when piped
//	CLICOLOR=0              -> never
//	otherwise               -> only on a TTY
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status glyphs may use emoji. BABEL_NO_EMOJI
// forces plain ASCII; otherwise emoji rides along with having a terminal.
func ShouldUseEmoji() bool {
	if os.Getenv("BABEL_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}
