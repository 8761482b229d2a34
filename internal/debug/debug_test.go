package debug

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// capture redirects a stream while fn runs and returns what was written.
func capture(t *testing.T, stream **os.File, fn func()) string {
	t.Helper()
	old := *stream
	defer func() { *stream = old }()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	*stream = w

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestEnabledFollowsVerbose(t *testing.T) {
	oldEnabled, oldVerbose := enabled, verboseMode
	defer func() { enabled, verboseMode = oldEnabled, oldVerbose }()

	enabled = false
	verboseMode = false
	if Enabled() {
		t.Error("Enabled() should be false with both flags off")
	}

	SetVerbose(true)
	if !Enabled() {
		t.Error("Enabled() should be true after SetVerbose(true)")
	}

	SetVerbose(false)
	enabled = true
	if !Enabled() {
		t.Error("Enabled() should be true when the env flag is set")
	}
}

func TestLogfRespectsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    string
	}{
		{"outputs when enabled", true, "gather: 3 chunks\n"},
		{"silent when disabled", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled := enabled
			defer func() { enabled = oldEnabled }()
			enabled = tt.enabled

			got := capture(t, &os.Stderr, func() {
				Logf("gather: %d chunks\n", 3)
			})
			if got != tt.want {
				t.Errorf("Logf() output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintfRespectsEnabled(t *testing.T) {
	oldEnabled := enabled
	defer func() { enabled = oldEnabled }()

	enabled = false
	if got := capture(t, &os.Stdout, func() { Printf("n=%d\n", 42) }); got != "" {
		t.Errorf("Printf() while disabled wrote %q", got)
	}

	enabled = true
	if got := capture(t, &os.Stdout, func() { Printf("n=%d\n", 42) }); got != "n=42\n" {
		t.Errorf("Printf() output = %q, want %q", got, "n=42\n")
	}
}

func TestQuietMode(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	SetQuiet(true)
	if !IsQuiet() {
		t.Error("IsQuiet() should be true after SetQuiet(true)")
	}
	if got := capture(t, &os.Stdout, func() { PrintNormal("synced\n") }); got != "" {
		t.Errorf("PrintNormal() in quiet mode wrote %q", got)
	}
	if got := capture(t, &os.Stdout, func() { PrintlnNormal("synced") }); got != "" {
		t.Errorf("PrintlnNormal() in quiet mode wrote %q", got)
	}

	SetQuiet(false)
	if got := capture(t, &os.Stdout, func() { PrintlnNormal("hello", "world") }); got != "hello world\n" {
		t.Errorf("PrintlnNormal() output = %q", got)
	}
}

func TestLogOpWritesOpsLog(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".babel"), 0o755); err != nil {
		t.Fatal(err)
	}

	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	t.Setenv("BABEL_AGENT_ID", "tester")
	t.Setenv("BABEL_SESSION_ID", "s1")

	LogOp("CAPTURE", "decision_a1b2c3d4", "captured from cli")

	content, err := os.ReadFile(filepath.Join(dir, ".babel", "ops.log"))
	if err != nil {
		t.Fatalf("ops.log not written: %v", err)
	}
	line := strings.TrimSpace(string(content))
	fields := strings.Split(line, "|")
	if len(fields) != 6 {
		t.Fatalf("ops.log line has %d fields, want 6: %q", len(fields), line)
	}
	if fields[1] != "CAPTURE" || fields[2] != "decision_a1b2c3d4" {
		t.Errorf("unexpected op fields: %q", line)
	}
	if fields[3] != "tester" || fields[4] != "s1" {
		t.Errorf("agent/session not taken from env: %q", line)
	}
}

func TestLogOpOutsideProjectIsSilent(t *testing.T) {
	oldWd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	// Must not panic or create files anywhere.
	LogOp("CAPTURE", "", "")
}
