package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/Nexoracode/khadamat/config"
)

// ContentGenerator is the slice of the genai client the app depends on.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ ContentGenerator = (*AIClient)(nil)

// AIClient wraps the Gemini models endpoint with tracing.
type AIClient struct {
	models ContentGenerator
	logger *slog.Logger
}

// NewAIClient builds a Gemini API client from cfg.
func NewAIClient(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (*AIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewAIClientWithGenerator(client.Models, logger), nil
}

// NewAIClientWithGenerator wraps an existing generator.
func NewAIClientWithGenerator(models ContentGenerator, logger *slog.Logger) *AIClient {
	return &AIClient{
		models: models,
		logger: logger,
	}
}

func (ai *AIClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateContent", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.contents", len(contents)),
	))
	defer span.End()

	resp, err := ai.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		ai.logger.WarnContext(ctx, "Gemini request failed", slog.String("model", model), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Gemini request failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Gemini request completed")
	return resp, nil
}

// Unavailable is a generator for running without Gemini credentials. Every
// call fails, so chat answers with the fallback reply and speech is skipped.
type Unavailable struct {
	Reason error
}

func (u Unavailable) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, fmt.Errorf("generative ai unavailable: %w", u.Reason)
}
