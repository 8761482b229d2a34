package ui

import (
	"os"
	"testing"
)

// clearColorEnv unsets every variable ShouldUseColor consults, restoring
// them when the test ends.
func clearColorEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{
			name: "NO_COLOR disables color",
			env:  map[string]string{"NO_COLOR": "1"},
			want: false,
		},
		{
			name: "CLICOLOR=0 disables color",
			env:  map[string]string{"CLICOLOR": "0"},
			want: false,
		},
		{
			name: "CLICOLOR_FORCE enables color even when piped",
			env:  map[string]string{"CLICOLOR_FORCE": "1"},
			want: true,
		},
		{
			name: "NO_COLOR beats CLICOLOR_FORCE",
			env:  map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"},
			want: false,
		},
		{
			name: "CLICOLOR_FORCE=0 does not force",
			env:  map[string]string{"CLICOLOR_FORCE": "0"},
			// Falls through to the TTY check; under go test stdout is a pipe.
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearColorEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldUseColor_DefaultFollowsTTY(t *testing.T) {
	clearColorEnv(t)
	if got := ShouldUseColor(); got != IsTerminal() {
		t.Errorf("ShouldUseColor() = %v with no env overrides, want IsTerminal() = %v", got, IsTerminal())
	}
}

func TestShouldUseEmoji(t *testing.T) {
	t.Run("BABEL_NO_EMOJI disables emoji", func(t *testing.T) {
		t.Setenv("BABEL_NO_EMOJI", "1")
		if ShouldUseEmoji() {
			t.Error("ShouldUseEmoji() = true with BABEL_NO_EMOJI set")
		}
	})

	t.Run("default follows TTY", func(t *testing.T) {
		if v, ok := os.LookupEnv("BABEL_NO_EMOJI"); ok {
			os.Unsetenv("BABEL_NO_EMOJI")
			t.Cleanup(func() { os.Setenv("BABEL_NO_EMOJI", v) })
		}
		if got := ShouldUseEmoji(); got != IsTerminal() {
			t.Errorf("ShouldUseEmoji() = %v, want IsTerminal() = %v", got, IsTerminal())
		}
	})
}

func TestIsAgentMode(t *testing.T) {
	t.Setenv("BABEL_AGENT_MODE", "1")
	if !IsAgentMode() {
		t.Error("IsAgentMode() = false with BABEL_AGENT_MODE set")
	}
}

func TestIsTerminal(t *testing.T) {
	// Under go test stdout is typically a pipe; just verify it answers.
	t.Logf("IsTerminal() = %v", IsTerminal())
}
