package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nexoracode/khadamat/internal/api"
	"github.com/Nexoracode/khadamat/internal/types"
)

const (
	DefaultTopSpecialists = 3

	defaultSpecialistRating = 5.0
	defaultSpecialistImage  = "https://picsum.photos/id/65/200/200"
	defaultProductImage     = "https://picsum.photos/id/1/400/300"
)

// DefaultSpecialistLocation is used when an admin adds a specialist without
// coordinates.
var DefaultSpecialistLocation = types.GeoPoint{Lat: 35.7, Lng: 51.3}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ListSpecialists(ctx context.Context, expertise string) ([]types.Specialist, error)
	TopSpecialists(ctx context.Context, n int) ([]types.Specialist, error)
	GetSpecialist(ctx context.Context, id string) (*types.Specialist, error)
	CreateSpecialist(ctx context.Context, req types.CreateSpecialistRequest) (*types.Specialist, error)
	DeleteSpecialist(ctx context.Context, id string) error

	ListProducts(ctx context.Context, category string) ([]types.Product, error)
	GetProduct(ctx context.Context, id string) (*types.Product, error)
	CreateProduct(ctx context.Context, req types.CreateProductRequest) (*types.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListUsers(ctx context.Context, query string) ([]types.User, error)
	CreateUser(ctx context.Context, req types.CreateUserRequest) (*types.User, error)
	DeleteUser(ctx context.Context, id string) error

	Dashboard(ctx context.Context) (*types.DashboardStats, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	now    func() time.Time
}

// NewServiceImpl creates a new catalog service.
func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

func (s *ServiceImpl) ListSpecialists(ctx context.Context, expertise string) ([]types.Specialist, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "ListSpecialists", trace.WithAttributes(
		attribute.String("expertise", expertise),
	))
	defer span.End()

	specialists, err := s.repo.ListSpecialists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list specialists")
		return nil, fmt.Errorf("failed to list specialists: %w", err)
	}
	if expertise != "" {
		specialists = lo.Filter(specialists, func(sp types.Specialist, _ int) bool {
			return sp.Expertise == expertise
		})
	}
	span.SetAttributes(attribute.Int("specialists.count", len(specialists)))
	span.SetStatus(codes.Ok, "Specialists listed")
	return specialists, nil
}

// TopSpecialists returns the n best rated specialists, highest first.
func (s *ServiceImpl) TopSpecialists(ctx context.Context, n int) ([]types.Specialist, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "TopSpecialists")
	defer span.End()

	if n <= 0 {
		n = DefaultTopSpecialists
	}
	specialists, err := s.repo.ListSpecialists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list specialists")
		return nil, fmt.Errorf("failed to list specialists: %w", err)
	}
	slices.SortStableFunc(specialists, func(a, b types.Specialist) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	if len(specialists) > n {
		specialists = specialists[:n]
	}
	span.SetStatus(codes.Ok, "Top specialists computed")
	return specialists, nil
}

func (s *ServiceImpl) GetSpecialist(ctx context.Context, id string) (*types.Specialist, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "GetSpecialist", trace.WithAttributes(
		attribute.String("specialist.id", id),
	))
	defer span.End()

	sp, err := s.repo.GetSpecialist(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Specialist not found")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Specialist found")
	return sp, nil
}

func (s *ServiceImpl) CreateSpecialist(ctx context.Context, req types.CreateSpecialistRequest) (*types.Specialist, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "CreateSpecialist", trace.WithAttributes(
		attribute.String("specialist.expertise", req.Expertise),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateSpecialist"))

	if err := api.ValidateStruct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid specialist")
		return nil, err
	}

	location := DefaultSpecialistLocation
	if req.Location != nil {
		location = *req.Location
	}
	created, err := s.repo.AddSpecialist(ctx, types.Specialist{
		Name:      strings.TrimSpace(req.Name),
		Expertise: strings.TrimSpace(req.Expertise),
		Region:    strings.TrimSpace(req.Region),
		Phone:     strings.TrimSpace(req.Phone),
		Rating:    defaultSpecialistRating,
		Image:     defaultSpecialistImage,
		Location:  location,
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to add specialist", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add specialist")
		return nil, fmt.Errorf("failed to add specialist: %w", err)
	}

	l.InfoContext(ctx, "Specialist created", slog.String("id", created.ID))
	span.SetStatus(codes.Ok, "Specialist created")
	return created, nil
}

func (s *ServiceImpl) DeleteSpecialist(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "DeleteSpecialist", trace.WithAttributes(
		attribute.String("specialist.id", id),
	))
	defer span.End()

	if err := s.repo.DeleteSpecialist(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete specialist")
		return err
	}
	s.logger.InfoContext(ctx, "Specialist deleted", slog.String("id", id))
	span.SetStatus(codes.Ok, "Specialist deleted")
	return nil
}

func (s *ServiceImpl) ListProducts(ctx context.Context, category string) ([]types.Product, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "ListProducts", trace.WithAttributes(
		attribute.String("category", category),
	))
	defer span.End()

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list products")
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if category != "" {
		products = lo.Filter(products, func(p types.Product, _ int) bool { return p.Category == category })
	}
	span.SetStatus(codes.Ok, "Products listed")
	return products, nil
}

func (s *ServiceImpl) GetProduct(ctx context.Context, id string) (*types.Product, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "GetProduct", trace.WithAttributes(
		attribute.String("product.id", id),
	))
	defer span.End()

	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Product not found")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Product found")
	return p, nil
}

func (s *ServiceImpl) CreateProduct(ctx context.Context, req types.CreateProductRequest) (*types.Product, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "CreateProduct")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateProduct"))

	if err := api.ValidateStruct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid product")
		return nil, err
	}

	image := strings.TrimSpace(req.Image)
	if image == "" {
		image = defaultProductImage
	}
	created, err := s.repo.AddProduct(ctx, types.Product{
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Description: req.Description,
		Image:       image,
		Category:    strings.TrimSpace(req.Category),
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to add product", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add product")
		return nil, fmt.Errorf("failed to add product: %w", err)
	}

	l.InfoContext(ctx, "Product created", slog.String("id", created.ID))
	span.SetStatus(codes.Ok, "Product created")
	return created, nil
}

func (s *ServiceImpl) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "DeleteProduct", trace.WithAttributes(
		attribute.String("product.id", id),
	))
	defer span.End()

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete product")
		return err
	}
	s.logger.InfoContext(ctx, "Product deleted", slog.String("id", id))
	span.SetStatus(codes.Ok, "Product deleted")
	return nil
}

// ListUsers returns users whose name or phone contains query. An empty query
// returns everyone.
func (s *ServiceImpl) ListUsers(ctx context.Context, query string) ([]types.User, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "ListUsers")
	defer span.End()

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	query = strings.TrimSpace(query)
	if query != "" {
		users = lo.Filter(users, func(u types.User, _ int) bool {
			return strings.Contains(u.Name, query) || strings.Contains(u.Phone, query)
		})
	}
	span.SetStatus(codes.Ok, "Users listed")
	return users, nil
}

func (s *ServiceImpl) CreateUser(ctx context.Context, req types.CreateUserRequest) (*types.User, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "CreateUser")
	defer span.End()

	if err := api.ValidateStruct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid user")
		return nil, err
	}

	created, err := s.repo.AddUser(ctx, types.User{
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		JoinDate: s.now().Format("2006/01/02"),
		Status:   types.UserStatusActive,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add user")
		return nil, fmt.Errorf("failed to add user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created", slog.String("id", created.ID))
	span.SetStatus(codes.Ok, "User created")
	return created, nil
}

func (s *ServiceImpl) DeleteUser(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "DeleteUser", trace.WithAttributes(
		attribute.String("user.id", id),
	))
	defer span.End()

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete user")
		return err
	}
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

func (s *ServiceImpl) Dashboard(ctx context.Context) (*types.DashboardStats, error) {
	ctx, span := otel.Tracer("CatalogService").Start(ctx, "Dashboard")
	defer span.End()

	specialists, err := s.repo.ListSpecialists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list specialists")
		return nil, fmt.Errorf("failed to list specialists: %w", err)
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list products")
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	stats := &types.DashboardStats{
		Specialists: len(specialists),
		Products:    len(products),
		Users:       len(users),
		ActiveUsers: lo.CountBy(users, func(u types.User) bool { return u.Status == types.UserStatusActive }),
		ExpertiseCounts: lo.CountValuesBy(specialists, func(sp types.Specialist) string {
			return sp.Expertise
		}),
	}
	if len(specialists) > 0 {
		stats.AverageRating = lo.SumBy(specialists, func(sp types.Specialist) float64 { return sp.Rating }) / float64(len(specialists))
	}
	span.SetStatus(codes.Ok, "Dashboard computed")
	return stats, nil
}

// RedactContact strips phone numbers from specialists shown to anonymous
// callers.
func RedactContact(specialists []types.Specialist) []types.Specialist {
	return lo.Map(specialists, func(sp types.Specialist, _ int) types.Specialist {
		sp.Phone = ""
		return sp
	})
}
