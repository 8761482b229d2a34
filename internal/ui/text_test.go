package ui

import (
	"strconv"
	"strings"
	"testing"
)

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short text unchanged", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, want: "hello"},
		{name: "truncate with ellipsis", input: "hello world", maxLen: 8, want: "hello..."},
		{name: "very short maxLen", input: "hello world", maxLen: 3, want: "..."},
		{name: "empty string", input: "", maxLen: 10, want: ""},
		{name: "unicode chars", input: "héllo wörld", maxLen: 8, want: "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateSimple(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("TruncateSimple(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestShouldTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLines int
		maxChars int
		want     bool
	}{
		{name: "short text", text: "hello", maxLines: 10, maxChars: 100, want: false},
		{name: "exceeds char limit", text: strings.Repeat("a", 200), maxLines: 0, maxChars: 100, want: true},
		{name: "exceeds line limit", text: "a\nb\nc\nd\ne\nf", maxLines: 3, maxChars: 0, want: true},
		{name: "zero thresholds disable checks", text: strings.Repeat("a", 200), maxLines: 0, maxChars: 0, want: false},
		{name: "empty text", text: "", maxLines: 10, maxChars: 100, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldTruncate(tt.text, tt.maxLines, tt.maxChars); got != tt.want {
				t.Errorf("ShouldTruncate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line " + strconv.Itoa(i+1)
	}
	longText := strings.Join(lines, "\n")

	t.Run("short text unchanged", func(t *testing.T) {
		text := "line 1\nline 2\nline 3"
		if got := TruncateLines(text, 10, 2); got != text {
			t.Errorf("TruncateLines() = %q, want unchanged input", got)
		}
	})

	t.Run("long text keeps head and tail", func(t *testing.T) {
		got := TruncateLines(longText, 15, 5)
		if !strings.HasPrefix(got, "line 1\n") {
			t.Errorf("TruncateLines() should keep the head, got %q", got[:min(len(got), 50)])
		}
		if !strings.HasSuffix(strings.TrimSpace(got), "line 20") {
			t.Errorf("TruncateLines() should keep the tail, got %q", got[max(0, len(got)-50):])
		}
		if !strings.Contains(got, "10 lines hidden") {
			t.Errorf("TruncateLines() should report the hidden count, got %q", got)
		}
		for _, hiddenLine := range []string{"line 8\n", "line 12\n"} {
			if strings.Contains(got, hiddenLine) {
				t.Errorf("TruncateLines() should hide the middle, found %q", hiddenLine)
			}
		}
	})

	t.Run("tiny budget cuts from the top", func(t *testing.T) {
		got := TruncateLines(longText, 3, 5)
		if !strings.HasSuffix(got, "...") {
			t.Errorf("TruncateLines() with tiny budget should end in ellipsis, got %q", got)
		}
	})
}

func TestTruncateChars(t *testing.T) {
	long := strings.Repeat("word ", 200) // 1000 chars

	got := TruncateChars(long, 500, 200)
	if len(got) >= len(long) {
		t.Errorf("TruncateChars() did not shrink the text")
	}
	if !strings.Contains(got, "chars hidden") {
		t.Errorf("TruncateChars() should report the hidden count, got %q", got)
	}

	short := "short text"
	if got := TruncateChars(short, 500, 200); got != short {
		t.Errorf("TruncateChars() = %q, want unchanged input", got)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxWidth  int
		wantLines int
	}{
		{name: "short line unchanged", text: "hello world", maxWidth: 80, wantLines: 1},
		{name: "wrap long line", text: "the quick brown fox jumps over the lazy dog", maxWidth: 20, wantLines: 3},
		{name: "preserve newlines", text: "line 1\nline 2", maxWidth: 80, wantLines: 2},
		{name: "overlong word stays whole", text: "antidisestablishmentarianism", maxWidth: 10, wantLines: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapText(tt.text, tt.maxWidth)
			if gotLines := strings.Count(got, "\n") + 1; gotLines != tt.wantLines {
				t.Errorf("WrapText() got %d lines, want %d\noutput: %q", gotLines, tt.wantLines, got)
			}
		})
	}
}
