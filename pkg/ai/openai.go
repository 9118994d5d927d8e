package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "levelup",
		Subsystem: "ai",
		Name:      "hint_duration_seconds",
		Help:      "Duration of AI hint requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "levelup",
		Subsystem: "ai",
		Name:      "hint_failures_total",
		Help:      "Number of AI hint failures",
	}, []string{"model"})
)

const maxHintRunes = 280

// OpenAIConfig defines configuration options for the OpenAI hinter.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIHinter implements Hinter against the OpenAI chat completion API.
type OpenAIHinter struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIHinter builds a new hinter using the provided configuration.
func NewOpenAIHinter(cfg OpenAIConfig) (*OpenAIHinter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 160
	}

	tracer := otel.Tracer("github.com/noah-isme/levelup-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIHinter{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Hint asks the model for a short hint and parses the JSON reply.
func (h *OpenAIHinter) Hint(parent context.Context, input HintInput) (HintResult, error) {
	ctx, span := h.tracer.Start(parent, "openai.hint", trace.WithAttributes(
		attribute.String("model", h.cfg.Model),
		attribute.String("hint.kind", input.Kind),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       h.cfg.Model,
		MaxTokens:   h.cfg.MaxTokens,
		Temperature: h.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: hintSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := h.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(h.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return HintResult{}, h.fail(span, fmt.Errorf("openai hint: %w", err))
	}

	if len(resp.Choices) == 0 {
		return HintResult{}, h.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := parseHintResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return HintResult{}, h.fail(span, err)
	}
	result.Model = h.cfg.Model

	h.logger.Debug().Str("kind", input.Kind).Dur("duration", time.Since(start)).Msg("ai hint generated")
	return result, nil
}

func (h *OpenAIHinter) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(h.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func hintSystemPrompt() string {
	return "Eres un tutor de educación básica en Chile. Da una pista breve (máximo dos oraciones) " +
		"que ayude al estudiante a razonar, sin revelar la respuesta. Responde en español con JSON {\"hint\": string}."
}

func buildUserPrompt(input HintInput) string {
	var builder strings.Builder
	builder.WriteString("# Actividad\n")
	builder.WriteString(input.ActivityTitle)
	if input.Subject != "" {
		builder.WriteString("\n\n## Asignatura\n")
		builder.WriteString(input.Subject)
	}
	builder.WriteString("\n\n## Minijuego\n")
	builder.WriteString(input.Kind)
	builder.WriteString("\n\n## Enunciado\n")
	builder.WriteString(input.Statement)
	if input.AuthorHint != "" {
		builder.WriteString("\n\n## Pista del docente\n")
		builder.WriteString(input.AuthorHint)
	}
	if len(input.Data) > 0 {
		if raw, err := json.Marshal(redactAnswers(input.Data)); err == nil {
			builder.WriteString("\n\n## Contenido\n")
			builder.Write(raw)
		}
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

// redactAnswers drops keys that give the solution away.
func redactAnswers(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		switch key {
		case "answers", "ans", "answer", "correctas", "fallback_correct":
			continue
		}
		out[key] = value
	}
	return out
}

func parseHintResponse(content string) (HintResult, error) {
	var data struct {
		Hint string `json:"hint"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return HintResult{}, fmt.Errorf("parse hint json: %w", err)
	}

	hint := strings.TrimSpace(data.Hint)
	if hint == "" {
		return HintResult{}, fmt.Errorf("empty hint returned from openai")
	}
	if runes := []rune(hint); len(runes) > maxHintRunes {
		hint = string(runes[:maxHintRunes])
	}
	return HintResult{Hint: hint}, nil
}
