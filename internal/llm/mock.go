package llm

import (
	"context"
	"strings"
	"sync"
)

// MockCall records one Complete invocation.
type MockCall struct {
	System    string
	User      string
	MaxTokens int
}

// Mock is the offline provider. It returns a canned response and records
// every call so tests can assert on the prompts.
type Mock struct {
	mu       sync.Mutex
	response string
	err      error
	calls    []MockCall
}

// NewMock builds a mock returning response from every Complete. An empty
// response defaults to "[]" so JSON-parsing callers see zero items rather
// than a parse error.
func NewMock(response string) *Mock {
	if response == "" {
		response = "[]"
	}
	return &Mock{response: response}
}

// Fail makes every subsequent Complete return err.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// IsAvailable implements Provider. The mock is always up.
func (m *Mock) IsAvailable(context.Context) bool { return true }

// Complete implements Provider. Token counts are whitespace-separated word
// counts, deterministic across runs.
func (m *Mock) Complete(ctx context.Context, system, user string, maxTokens int) (string, int, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{System: system, User: user, MaxTokens: maxTokens})
	if m.err != nil {
		return "", 0, 0, m.err
	}
	inTokens := len(strings.Fields(system)) + len(strings.Fields(user))
	return m.response, inTokens, len(strings.Fields(m.response)), nil
}

// Calls returns a copy of every recorded invocation.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
