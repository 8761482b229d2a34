package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls pager behavior.
type PagerOptions struct {
	// NoPager disables the pager for this command (--no-pager flag).
	NoPager bool
}

// shouldUsePager decides whether to pipe through a pager. Never when the
// caller or BABEL_NO_PAGER opted out, when an agent is driving, or when
// stdout is not a TTY.
func shouldUsePager(opts PagerOptions) bool {
	if opts.NoPager {
		return false
	}
	if os.Getenv("BABEL_NO_PAGER") != "" {
		return false
	}
	if IsAgentMode() {
		return false
	}
	return IsTerminal()
}

// getPagerCommand returns the pager command: BABEL_PAGER, then PAGER, then
// "less".
func getPagerCommand() string {
	if pager := os.Getenv("BABEL_PAGER"); pager != "" {
		return pager
	}
	if pager := os.Getenv("PAGER"); pager != "" {
		return pager
	}
	return "less"
}

// getTerminalHeight returns the terminal height in lines, 0 when stdout is
// not a TTY.
func getTerminalHeight() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	_, height, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return height
}

func contentHeight(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// ToPager pipes content to a pager when it would overflow the terminal;
// otherwise it prints directly.
func ToPager(content string, opts PagerOptions) error {
	if !shouldUsePager(opts) {
		fmt.Print(content)
		return nil
	}

	if h := getTerminalHeight(); h > 0 && contentHeight(content) <= h-1 {
		fmt.Print(content)
		return nil
	}

	parts := strings.Fields(getPagerCommand())
	if len(parts) == 0 {
		fmt.Print(content)
		return nil
	}

	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 - pager command from PAGER/config
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// -R keeps ANSI colors, -F quits when a screenful fits, -X skips the
	// screen clear on exit.
	if os.Getenv("LESS") == "" {
		cmd.Env = append(os.Environ(), "LESS=-RFX")
	} else {
		cmd.Env = os.Environ()
	}

	return cmd.Run()
}
