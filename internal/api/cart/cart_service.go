package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nexoracode/khadamat/internal/types"
)

var ErrProductNotFound = errors.New("product not found")

// ProductReader looks products up in the catalog.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*types.Product, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetCart(ctx context.Context, userID string) types.Cart
	AddItem(ctx context.Context, userID, productID string) (types.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, delta int) types.Cart
}

// ServiceImpl keeps one in-memory cart per user.
type ServiceImpl struct {
	logger   *slog.Logger
	products ProductReader

	mu    sync.Mutex
	carts map[string][]types.CartItem
}

func NewServiceImpl(products ProductReader, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		products: products,
		carts:    make(map[string][]types.CartItem),
	}
}

func view(items []types.CartItem) types.Cart {
	return types.Cart{
		Items:      append(make([]types.CartItem, 0, len(items)), items...),
		TotalItems: lo.SumBy(items, func(i types.CartItem) int { return i.Quantity }),
		Total:      lo.SumBy(items, func(i types.CartItem) int64 { return i.Price * int64(i.Quantity) }),
	}
}

func (s *ServiceImpl) GetCart(_ context.Context, userID string) types.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view(s.carts[userID])
}

// AddItem puts one unit of the product in the cart.
func (s *ServiceImpl) AddItem(ctx context.Context, userID, productID string) (types.Cart, error) {
	ctx, span := otel.Tracer("CartService").Start(ctx, "AddItem", trace.WithAttributes(
		attribute.String("product.id", productID),
	))
	defer span.End()

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Product not found")
		return types.Cart{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	if i := slices.IndexFunc(items, func(it types.CartItem) bool { return it.ID == productID }); i >= 0 {
		items[i].Quantity++
	} else {
		items = append(items, types.CartItem{Product: *p, Quantity: 1})
	}
	s.carts[userID] = items

	s.logger.DebugContext(ctx, "Cart item added", slog.String("userID", userID), slog.String("productID", productID))
	span.SetStatus(codes.Ok, "Item added")
	return view(items), nil
}

// UpdateQuantity adds delta to the line, clamping at zero. Lines that reach
// zero are removed. Unknown lines are left alone.
func (s *ServiceImpl) UpdateQuantity(ctx context.Context, userID, productID string, delta int) types.Cart {
	_, span := otel.Tracer("CartService").Start(ctx, "UpdateQuantity", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("delta", delta),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	items := lo.FilterMap(s.carts[userID], func(it types.CartItem, _ int) (types.CartItem, bool) {
		if it.ID == productID {
			it.Quantity = max(0, it.Quantity+delta)
		}
		return it, it.Quantity > 0
	})
	s.carts[userID] = items

	span.SetStatus(codes.Ok, "Quantity updated")
	return view(items)
}
