package generativeAI

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/Nexoracode/khadamat/app/observability/metrics"
	"github.com/Nexoracode/khadamat/config"
	"github.com/Nexoracode/khadamat/internal/types"
)

// CatalogSnapshot provides the catalog embedded in the system instruction.
type CatalogSnapshot interface {
	ListSpecialists(ctx context.Context) ([]types.Specialist, error)
	ListProducts(ctx context.Context) ([]types.Product, error)
}

// Gateway turns one user turn into a structured reply. It never fails: any
// problem yields FallbackReply.
type Gateway struct {
	logger    *slog.Logger
	generator ContentGenerator
	catalog   CatalogSnapshot
	model     string
	timeout   time.Duration
}

func NewGateway(generator ContentGenerator, catalog CatalogSnapshot, cfg config.AIConfig, logger *slog.Logger) *Gateway {
	return &Gateway{
		logger:    logger,
		generator: generator,
		catalog:   catalog,
		model:     cfg.Model,
		timeout:   cfg.RequestTimeout,
	}
}

func (g *Gateway) Converse(ctx context.Context, utterance string, history []types.ConversationMessage, audio *types.AudioInput) (reply types.AIReply) {
	ctx, span := otel.Tracer("AIGateway").Start(ctx, "Converse", trace.WithAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("history.length", len(history)),
		attribute.Bool("audio.attached", audio != nil),
	))
	defer span.End()

	l := g.logger.With(slog.String("method", "Converse"))

	fallback := func(reason string, err error) types.AIReply {
		l.WarnContext(ctx, "Using fallback reply", slog.String("reason", reason), slog.Any("error", err))
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, reason)
		metrics.Get().AIFallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		return FallbackReply()
	}

	defer func() {
		if rec := recover(); rec != nil {
			reply = fallback("panic", fmt.Errorf("ai client panic: %v", rec))
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	specialists, err := g.catalog.ListSpecialists(ctx)
	if err != nil {
		l.WarnContext(ctx, "Catalog snapshot without specialists", slog.Any("error", err))
	}
	products, err := g.catalog.ListProducts(ctx)
	if err != nil {
		l.WarnContext(ctx, "Catalog snapshot without products", slog.Any("error", err))
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: getAssistantInstruction(specialists, products)}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    replySchema(),
	}

	resp, err := g.generator.GenerateContent(ctx, g.model, buildContents(history, utterance, audio), cfg)
	if err != nil {
		return fallback("request_failed", err)
	}
	if resp == nil {
		return fallback("empty_response", nil)
	}

	reply, err = parseReply(resp.Text())
	if err != nil {
		return fallback("invalid_reply", err)
	}

	l.DebugContext(ctx, "Model reply parsed",
		slog.String("recommendation_type", string(reply.RecommendationType)),
		slog.String("recommendation_id", reply.RecommendationID))
	span.SetAttributes(attribute.String("reply.recommendation_type", string(reply.RecommendationType)))
	span.SetStatus(codes.Ok, "Reply generated")
	return reply
}
