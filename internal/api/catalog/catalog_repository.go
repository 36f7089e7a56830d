package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/Nexoracode/khadamat/internal/types"
)

var ErrNotFound = errors.New("catalog entity not found")

var _ Repository = (*MemoryRepository)(nil)

// Repository is the storage contract of the catalog. Every read returns
// copies; callers never share memory with the store.
type Repository interface {
	ListSpecialists(ctx context.Context) ([]types.Specialist, error)
	GetSpecialist(ctx context.Context, id string) (*types.Specialist, error)
	AddSpecialist(ctx context.Context, s types.Specialist) (*types.Specialist, error)
	DeleteSpecialist(ctx context.Context, id string) error

	ListProducts(ctx context.Context) ([]types.Product, error)
	GetProduct(ctx context.Context, id string) (*types.Product, error)
	AddProduct(ctx context.Context, p types.Product) (*types.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]types.User, error)
	AddUser(ctx context.Context, u types.User) (*types.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// MemoryRepository keeps the catalog in process memory. State is lost on
// restart.
type MemoryRepository struct {
	logger *slog.Logger

	mu          sync.RWMutex
	specialists []types.Specialist
	products    []types.Product
	users       []types.User

	// monotonically increasing id suffixes; deleting never frees an id
	specialistSeq int
	productSeq    int
	userSeq       int
}

// NewMemoryRepository returns a repository preloaded with the given seed.
func NewMemoryRepository(logger *slog.Logger, specialists []types.Specialist, products []types.Product, users []types.User) *MemoryRepository {
	return &MemoryRepository{
		logger:        logger,
		specialists:   slices.Clone(specialists),
		products:      slices.Clone(products),
		users:         slices.Clone(users),
		specialistSeq: len(specialists),
		productSeq:    len(products),
		userSeq:       len(users),
	}
}

// NewSeededRepository returns a repository holding the launch catalog.
func NewSeededRepository(logger *slog.Logger) *MemoryRepository {
	return NewMemoryRepository(logger, SeedSpecialists(), SeedProducts(), SeedUsers())
}

func (r *MemoryRepository) ListSpecialists(_ context.Context) ([]types.Specialist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.specialists), nil
}

func (r *MemoryRepository) GetSpecialist(_ context.Context, id string) (*types.Specialist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := lo.Find(r.specialists, func(s types.Specialist) bool { return s.ID == id })
	if !ok {
		return nil, fmt.Errorf("specialist %q: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (r *MemoryRepository) AddSpecialist(_ context.Context, s types.Specialist) (*types.Specialist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specialistSeq++
	s.ID = fmt.Sprintf("s%d", r.specialistSeq)
	r.specialists = append(r.specialists, s)
	r.logger.Debug("Specialist added", slog.String("id", s.ID), slog.String("expertise", s.Expertise))
	return &s, nil
}

func (r *MemoryRepository) DeleteSpecialist(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.specialists)
	r.specialists = lo.Reject(r.specialists, func(s types.Specialist, _ int) bool { return s.ID == id })
	if len(r.specialists) == n {
		return fmt.Errorf("specialist %q: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MemoryRepository) ListProducts(_ context.Context) ([]types.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.products), nil
}

func (r *MemoryRepository) GetProduct(_ context.Context, id string) (*types.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := lo.Find(r.products, func(p types.Product) bool { return p.ID == id })
	if !ok {
		return nil, fmt.Errorf("product %q: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (r *MemoryRepository) AddProduct(_ context.Context, p types.Product) (*types.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.productSeq++
	p.ID = fmt.Sprintf("p%d", r.productSeq)
	r.products = append(r.products, p)
	r.logger.Debug("Product added", slog.String("id", p.ID))
	return &p, nil
}

func (r *MemoryRepository) DeleteProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.products)
	r.products = lo.Reject(r.products, func(p types.Product, _ int) bool { return p.ID == id })
	if len(r.products) == n {
		return fmt.Errorf("product %q: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users), nil
}

func (r *MemoryRepository) AddUser(_ context.Context, u types.User) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userSeq++
	u.ID = fmt.Sprintf("u%d", r.userSeq)
	r.users = append(r.users, u)
	return &u, nil
}

func (r *MemoryRepository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.users)
	r.users = lo.Reject(r.users, func(u types.User, _ int) bool { return u.ID == id })
	if len(r.users) == n {
		return fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return nil
}
