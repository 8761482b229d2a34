package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/babelhq/babel/internal/config"
	"github.com/babelhq/babel/internal/telemetry"
)

const (
	anthropicMaxRetries     = 3
	anthropicInitialBackoff = 1 * time.Second
)

// errAPIKeyRequired is returned when the key env var is empty.
var errAPIKeyRequired = errors.New("API key required")

// Anthropic talks to the Anthropic Messages API.
type Anthropic struct {
	client         anthropic.Client
	model          anthropic.Model
	keyEnv         string
	maxRetries     int
	initialBackoff time.Duration
}

// NewAnthropic builds the remote provider. The key comes from the configured
// environment variable; construction fails without it so misconfiguration
// surfaces before the first call.
func NewAnthropic(ps config.ProviderSettings) (*Anthropic, error) {
	keyEnv := ps.KeyEnv
	if keyEnv == "" {
		keyEnv = "ANTHROPIC_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", errAPIKeyRequired, keyEnv)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if ps.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(ps.BaseURL))
	}

	llmMetricsOnce.Do(initLLMMetrics)

	return &Anthropic{
		client:         anthropic.NewClient(opts...),
		model:          anthropic.Model(ps.Model),
		keyEnv:         keyEnv,
		maxRetries:     anthropicMaxRetries,
		initialBackoff: anthropicInitialBackoff,
	}, nil
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic:" + string(a.model) }

// IsAvailable reports whether the key is still present. No network probe;
// quota errors surface per call.
func (a *Anthropic) IsAvailable(context.Context) bool {
	return os.Getenv(a.keyEnv) != ""
}

// Complete implements Provider with retries on 429 and 5xx.
func (a *Anthropic) Complete(ctx context.Context, system, user string, maxTokens int) (string, int, int, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	tracer := telemetry.Tracer("github.com/babelhq/babel/llm")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(attribute.String("babel.llm.model", string(a.model)))

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", 0, 0, ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := a.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("babel.llm.model", string(a.model))
			if llmMetrics.inputTokens != nil {
				llmMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				llmMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				llmMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(
				attribute.Int64("babel.llm.input_tokens", message.Usage.InputTokens),
				attribute.Int64("babel.llm.output_tokens", message.Usage.OutputTokens),
				attribute.Int("babel.llm.attempts", attempt+1),
			)

			if len(message.Content) == 0 {
				return "", 0, 0, errors.New("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", 0, 0, fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, int(message.Usage.InputTokens), int(message.Usage.OutputTokens), nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", 0, 0, ctx.Err()
		}
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", 0, 0, fmt.Errorf("anthropic: %w", err)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return "", 0, 0, fmt.Errorf("anthropic: failed after %d attempts: %w", a.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// llmMetrics holds lazily-initialized instruments shared by all providers.
var llmMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var llmMetricsOnce sync.Once

func initLLMMetrics() {
	m := telemetry.Meter("github.com/babelhq/babel/llm")
	llmMetrics.inputTokens, _ = m.Int64Counter("babel.llm.input_tokens",
		metric.WithDescription("LLM input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	llmMetrics.outputTokens, _ = m.Int64Counter("babel.llm.output_tokens",
		metric.WithDescription("LLM output tokens generated"),
		metric.WithUnit("{token}"),
	)
	llmMetrics.duration, _ = m.Float64Histogram("babel.llm.request.duration",
		metric.WithDescription("LLM request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}
