package gather

import (
	"errors"
	"strings"
	"testing"
)

func TestSafetyPassesSafeBabelCommands(t *testing.T) {
	s := NewSafety()
	for _, cmd := range []string{
		"babel status",
		"babel why decision_abc12345",
		"babel --verbose log",
		"/usr/local/bin/babel version",
	} {
		if err := s.Check(cmd); err != nil {
			t.Errorf("Check(%q) = %v, want nil", cmd, err)
		}
	}
}

func TestSafetyPassesNonBabelCommands(t *testing.T) {
	s := NewSafety()
	for _, cmd := range []string{
		"git log --oneline -5",
		"echo hi",
		"rm -rf /tmp/scratch", // not ours to police
	} {
		if err := s.Check(cmd); err != nil {
			t.Errorf("Check(%q) = %v, want nil", cmd, err)
		}
	}
}

func TestSafetyRejectsMutation(t *testing.T) {
	s := NewSafety()
	err := s.Check(`babel capture "decided to use sqlite"`)
	if err == nil {
		t.Fatal("Check() = nil, want SafetyViolation")
	}
	var violation *SafetyViolation
	if !errors.As(err, &violation) {
		t.Fatalf("Check() error type = %T", err)
	}
	if violation.Category != CategoryMutation {
		t.Errorf("category = %s, want MUTATION", violation.Category)
	}
	if !strings.Contains(err.Error(), "MUTATION") {
		t.Errorf("message %q does not name the category", err.Error())
	}
	if !strings.Contains(err.Error(), "capture") {
		t.Errorf("message %q does not name the subcommand", err.Error())
	}
}

func TestSafetyRejectsInteractiveAndLLMHeavy(t *testing.T) {
	s := NewSafety()

	var violation *SafetyViolation
	if err := s.Check("babel confirm prop_12345678"); !errors.As(err, &violation) {
		t.Fatalf("confirm: %v", err)
	} else if violation.Category != CategoryInteractive {
		t.Errorf("confirm category = %s, want INTERACTIVE", violation.Category)
	}

	if err := s.Check("babel gather --op why"); !errors.As(err, &violation) {
		t.Fatalf("gather: %v", err)
	} else if violation.Category != CategoryLLMHeavy {
		t.Errorf("gather category = %s, want LLM_HEAVY", violation.Category)
	}
}

func TestSafetyFailsClosedOnUnknownSubcommand(t *testing.T) {
	s := NewSafety()
	var violation *SafetyViolation
	if err := s.Check("babel frobnicate"); !errors.As(err, &violation) {
		t.Fatalf("unknown subcommand: %v, want violation", err)
	} else if violation.Category != CategoryMutation {
		t.Errorf("unknown category = %s, want MUTATION (fail closed)", violation.Category)
	}
}

func TestSafetyOverrideIsTheSinglePolicyPoint(t *testing.T) {
	s := NewSafety()
	if err := s.Check("babel memo list"); err == nil {
		t.Fatal("memo should start MUTATION")
	}
	s.Set("memo", CategorySafe)
	if err := s.Check("babel memo list"); err != nil {
		t.Fatalf("after Set(SAFE): %v", err)
	}
	if got := s.Categories()["memo"]; got != CategorySafe {
		t.Errorf("Categories()[memo] = %s, want SAFE", got)
	}
}
