package recommendation

import (
	"context"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nexoracode/khadamat/app/observability/metrics"
	"github.com/Nexoracode/khadamat/internal/api/geo"
	"github.com/Nexoracode/khadamat/internal/types"
)

// CatalogReader is the read side of the catalog the resolver needs.
type CatalogReader interface {
	ListSpecialists(ctx context.Context) ([]types.Specialist, error)
	GetSpecialist(ctx context.Context, id string) (*types.Specialist, error)
	GetProduct(ctx context.Context, id string) (*types.Product, error)
}

// Resolver turns the AI's recommendation pointer into a catalog entity.
type Resolver struct {
	logger  *slog.Logger
	catalog CatalogReader
}

func NewResolver(catalog CatalogReader, logger *slog.Logger) *Resolver {
	return &Resolver{
		logger:  logger,
		catalog: catalog,
	}
}

// Resolve returns nil whenever ref does not point at an existing entity.
// With a known origin a specialist is swapped for the nearest specialist of
// the same expertise.
func (r *Resolver) Resolve(ctx context.Context, ref types.RecommendationReference, origin *types.GeoPoint) *types.Recommendation {
	ctx, span := otel.Tracer("RecommendationResolver").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("recommendation.kind", string(ref.Kind)),
		attribute.String("recommendation.id", ref.ID),
		attribute.Bool("origin.known", origin != nil),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Resolve"))

	if ref.ID == "" {
		span.SetStatus(codes.Ok, "No recommendation")
		return nil
	}

	var rec *types.Recommendation
	switch ref.Kind {
	case types.RecommendationProduct:
		p, err := r.catalog.GetProduct(ctx, ref.ID)
		if err != nil {
			l.WarnContext(ctx, "Recommended product does not resolve", slog.String("id", ref.ID), slog.Any("error", err))
			break
		}
		rec = &types.Recommendation{Kind: types.RecommendationProduct, Product: p}
	case types.RecommendationSpecialist:
		s, err := r.catalog.GetSpecialist(ctx, ref.ID)
		if err != nil {
			l.WarnContext(ctx, "Recommended specialist does not resolve", slog.String("id", ref.ID), slog.Any("error", err))
			break
		}
		if origin != nil {
			s = r.nearest(ctx, *s, *origin)
		}
		rec = &types.Recommendation{Kind: types.RecommendationSpecialist, Specialist: s}
	default:
		span.SetStatus(codes.Ok, "No recommendation")
		return nil
	}

	if rec == nil {
		span.SetStatus(codes.Ok, "Dangling reference")
		return nil
	}
	metrics.Get().RecommendationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(rec.Kind))))
	span.SetStatus(codes.Ok, "Recommendation resolved")
	return rec
}

// nearest re-ranks among specialists sharing found's expertise. If the
// listing fails the AI's pick is kept.
func (r *Resolver) nearest(ctx context.Context, found types.Specialist, origin types.GeoPoint) *types.Specialist {
	candidates, err := r.catalog.ListSpecialists(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Could not list specialists for re-ranking", slog.Any("error", err))
		candidates = nil
	}

	chosen, ok := geo.NearestOfExpertise(candidates, origin, found.Expertise)
	if !ok {
		chosen = found
	}
	km := math.Round(geo.DistanceKm(origin, chosen.Location)*10) / 10
	chosen.DistanceKm = &km
	return &chosen
}
