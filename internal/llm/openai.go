package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/babelhq/babel/internal/config"
	"github.com/babelhq/babel/internal/telemetry"
)

// OpenAICompatible serves any endpoint speaking the OpenAI chat API. In
// practice that is ollama or llama.cpp on localhost, but a real OpenAI key
// works the same way.
type OpenAICompatible struct {
	client   openai.Client
	provider string
	model    string
	baseURL  string
}

// NewOpenAICompatible builds the local provider. A missing key is fine:
// ollama ignores Authorization entirely.
func NewOpenAICompatible(ps config.ProviderSettings) (*OpenAICompatible, error) {
	if ps.Model == "" {
		return nil, errors.New("openai-compatible provider needs a model")
	}

	apiKey := ""
	if ps.KeyEnv != "" {
		apiKey = os.Getenv(ps.KeyEnv)
	}
	if apiKey == "" {
		apiKey = "unused"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	baseURL := chatBaseURL(ps.BaseURL)
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	llmMetricsOnce.Do(initLLMMetrics)

	return &OpenAICompatible{
		client:   openai.NewClient(opts...),
		provider: strings.ToLower(ps.Provider),
		model:    ps.Model,
		baseURL:  baseURL,
	}, nil
}

// chatBaseURL normalizes a server root (http://localhost:11434) to the /v1
// prefix the chat API lives under. Already-qualified URLs pass through.
func chatBaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimRight(raw, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

// Name implements Provider.
func (o *OpenAICompatible) Name() string { return o.provider + ":" + o.model }

// IsAvailable probes the models endpoint with a short deadline. A local
// daemon that is not running fails fast here instead of per call.
func (o *OpenAICompatible) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := o.client.Models.List(ctx)
	return err == nil
}

// Complete implements Provider. No retry loop: the endpoint is a local
// daemon, so failures are configuration problems, not transient load.
func (o *OpenAICompatible) Complete(ctx context.Context, system, user string, maxTokens int) (string, int, int, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	tracer := telemetry.Tracer("github.com/babelhq/babel/llm")
	ctx, span := tracer.Start(ctx, "openai.chat.completions.new")
	defer span.End()
	span.SetAttributes(attribute.String("babel.llm.model", o.model))

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	t0 := time.Now()
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(o.model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	ms := float64(time.Since(t0).Milliseconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", 0, 0, fmt.Errorf("%s: %w", o.provider, err)
	}
	if len(completion.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("%s: unexpected response format: no choices", o.provider)
	}

	inTokens := int(completion.Usage.PromptTokens)
	outTokens := int(completion.Usage.CompletionTokens)

	modelAttr := attribute.String("babel.llm.model", o.model)
	if llmMetrics.inputTokens != nil {
		llmMetrics.inputTokens.Add(ctx, int64(inTokens), metric.WithAttributes(modelAttr))
		llmMetrics.outputTokens.Add(ctx, int64(outTokens), metric.WithAttributes(modelAttr))
		llmMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
	}
	span.SetAttributes(
		attribute.Int("babel.llm.input_tokens", inTokens),
		attribute.Int("babel.llm.output_tokens", outTokens),
	)

	return completion.Choices[0].Message.Content, inTokens, outTokens, nil
}
