package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Default truncation settings for long node details and gather output.
const (
	DefaultMaxLines     = 15  // max lines before detail text is truncated
	DefaultContextLines = 5   // lines kept at each end when truncating
	DefaultMaxChars     = 500 // max chars for inline truncation
	DefaultContextChars = 200 // chars kept at each end when truncating
)

// TruncateLines keeps the head and tail of a long text and hides the middle
// behind a marker with the hidden line count. Text within maxLines is
// returned unchanged.
func TruncateLines(text string, maxLines, contextLines int) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	total := len(lines)
	if total <= maxLines {
		return text
	}

	if contextLines < 1 {
		contextLines = DefaultContextLines
	}
	// Not enough room for head + marker + tail: plain cut from the top.
	if maxLines < contextLines*2+3 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}

	hidden := total - contextLines*2
	rule := RenderMuted(strings.Repeat("─", 40))

	var b strings.Builder
	b.WriteString(strings.Join(lines[:contextLines], "\n"))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(RenderMuted("... (" + strconv.Itoa(hidden) + " lines hidden, use --full for the complete text) ..."))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(strings.Join(lines[total-contextLines:], "\n"))
	return b.String()
}

// TruncateChars keeps the head and tail of a long text by rune count,
// breaking at word boundaries where it can.
func TruncateChars(text string, maxChars, contextChars int) string {
	if text == "" {
		return text
	}

	runeCount := utf8.RuneCountInString(text)
	if runeCount <= maxChars {
		return text
	}

	if contextChars < 50 {
		contextChars = DefaultContextChars
	}
	const markerLen = 50 // approximate length of the hidden-count marker
	if maxChars < contextChars*2+markerLen {
		return truncateAtWordBoundary(text, maxChars-3) + "..."
	}

	runes := []rune(text)
	head := truncateAtWordBoundary(string(runes[:contextChars]), contextChars)
	tail := truncateFromWordBoundary(string(runes[runeCount-contextChars:]), contextChars)
	hidden := runeCount - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)

	return head + "\n" + RenderMuted("... ["+strconv.Itoa(hidden)+" chars hidden] ...") + "\n" + tail
}

// TruncateSimple cuts from the end with an ellipsis. UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps text at word boundaries to fit maxWidth, preserving
// existing line breaks.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(wrapLine(line, maxWidth))
	}
	return b.String()
}

func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var b strings.Builder
	width := 0
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case width == 0:
			// First word goes on the line even when it alone overflows.
			b.WriteString(word)
			width = wordLen
		case width+1+wordLen <= maxWidth:
			b.WriteString(" ")
			b.WriteString(word)
			width += 1 + wordLen
		default:
			b.WriteString("\n")
			b.WriteString(word)
			width = wordLen
		}
	}
	return b.String()
}

// truncateAtWordBoundary cuts text down to roughly maxLen runes, preferring
// the last whitespace within reach of the cut point.
func truncateAtWordBoundary(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	for i := maxLen - 1; i >= maxLen-50 && i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return strings.TrimRight(string(runes[:i]), " \t")
		}
	}
	return string(runes[:maxLen])
}

// truncateFromWordBoundary drops the head of text down to roughly maxLen
// runes, preferring the first whitespace after the cut point.
func truncateFromWordBoundary(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	start := len(runes) - maxLen
	for i := start; i < start+50 && i < len(runes); i++ {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return strings.TrimLeft(string(runes[i+1:]), " \t")
		}
	}
	return string(runes[start:])
}

// ShouldTruncate reports whether text exceeds either threshold. A zero
// threshold disables that check.
func ShouldTruncate(text string, maxLines, maxChars int) bool {
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		return true
	}
	if maxLines > 0 && strings.Count(text, "\n")+1 > maxLines {
		return true
	}
	return false
}
