// Package llm abstracts the completion providers babel can talk to: the
// Anthropic API for remote work, any OpenAI-compatible endpoint (ollama,
// llama.cpp server) for local work, and a deterministic mock for tests.
//
// Provider selection follows config: active is local, remote, or auto; auto
// picks remote exactly when its API key environment variable is set.
package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/babelhq/babel/internal/config"
)

// DefaultMaxTokens bounds completions when the caller does not say.
const DefaultMaxTokens = 1024

// ErrNoProvider is returned when selection cannot produce a usable provider.
var ErrNoProvider = errors.New("no llm provider configured")

// Provider is one completion backend.
type Provider interface {
	// Complete sends a system+user prompt and returns the text along with
	// token usage.
	Complete(ctx context.Context, system, user string, maxTokens int) (text string, inTokens, outTokens int, err error)
	// IsAvailable reports whether the provider can serve right now. Cheap;
	// safe to call before every batch.
	IsAvailable(ctx context.Context) bool
	// Name identifies the provider in logs and results.
	Name() string
}

// Select builds the provider the settings call for.
func Select(cfg config.LLMSettings) (Provider, error) {
	switch strings.ToLower(cfg.Active) {
	case "local":
		return forSettings(cfg.Local)
	case "remote":
		return forSettings(cfg.Remote)
	case "auto", "":
		if cfg.Remote.KeyEnv != "" && os.Getenv(cfg.Remote.KeyEnv) != "" {
			return forSettings(cfg.Remote)
		}
		return forSettings(cfg.Local)
	}
	return nil, errors.New("llm.active must be local, remote, or auto")
}

func forSettings(ps config.ProviderSettings) (Provider, error) {
	switch strings.ToLower(ps.Provider) {
	case "anthropic":
		return NewAnthropic(ps)
	case "ollama", "openai":
		return NewOpenAICompatible(ps)
	case "mock":
		return NewMock(""), nil
	case "":
		return nil, ErrNoProvider
	}
	return nil, errors.New("unknown llm provider " + ps.Provider)
}
