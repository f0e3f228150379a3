package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/blob"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/store"
)

// CreateOrderInput is the checkout request after transport decoding.
type CreateOrderInput struct {
	OwnerID        string
	CustomerName   string
	Phone          string
	Address        string
	PaymentMethod  string
	PaymentDetails domain.PaymentDetails
	CartItems      []domain.CartItem
	TotalPrice     float64
}

// OrderService records orders against the catalog. Order creation is the one
// operation that must move three files together: stock decrements, the
// owner's cart removal and the order append all happen inside one critical
// section holding the products, carts and orders locks.
type OrderService interface {
	Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

type orderService struct {
	locker   store.Locker
	products *store.Collection[domain.Product]
	carts    *store.Collection[domain.Cart]
	orders   *store.Collection[domain.Order]
	images   blob.Store
	logger   *zap.Logger
}

// NewOrderService creates an OrderService spanning the three collections.
func NewOrderService(
	locker store.Locker,
	products *store.Collection[domain.Product],
	carts *store.Collection[domain.Cart],
	orders *store.Collection[domain.Order],
	images blob.Store,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		locker:   locker,
		products: products,
		carts:    carts,
		orders:   orders,
		images:   images,
		logger:   logger,
	}
}

// List returns all recorded orders from a snapshot read.
func (s *orderService) List(ctx context.Context) ([]domain.Order, error) {
	return s.orders.Snapshot()
}

// Create validates the order without any lock, then performs the
// transactional phase: holding the products, carts and orders locks it
// re-reads products, decrements stock per item (removing records that land on
// zero), drops the owner's cart, appends the immutable order record and
// persists all three files before releasing. If any item fails the
// authoritative stock check, nothing is written.
func (s *orderService) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := validateOrderInput(input); err != nil {
		return nil, err
	}

	// Fail fast against the current snapshot before taking the lock; the
	// checks are repeated authoritatively inside the critical section.
	snapshot, err := s.products.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := checkItemsAgainstCatalog(input.CartItems, snapshot); err != nil {
		return nil, err
	}

	order := domain.Order{
		ID:             uuid.New().String(),
		OwnerID:        strings.TrimSpace(input.OwnerID),
		CustomerName:   strings.TrimSpace(input.CustomerName),
		Phone:          strings.TrimSpace(input.Phone),
		Address:        strings.TrimSpace(input.Address),
		PaymentMethod:  input.PaymentMethod,
		PaymentDetails: input.PaymentDetails,
		CartItems:      input.CartItems,
		TotalPrice:     input.TotalPrice,
	}

	// The three resource locks are taken in a fixed order, products then
	// carts then orders, so the cart and order files cannot be mutated by a
	// concurrent Add/RemoveItem while checkout rewrites them.
	var staleImages []string
	err = s.locker.WithExclusive(ctx, s.products.Resource(), func() error {
		return s.locker.WithExclusive(ctx, s.carts.Resource(), func() error {
			return s.locker.WithExclusive(ctx, s.orders.Resource(), func() error {
				products, err := store.ReadArray[domain.Product](s.products.Path())
				if err != nil {
					return err
				}
				if err := checkItemsAgainstCatalog(input.CartItems, products); err != nil {
					return err
				}

				for _, item := range input.CartItems {
					for i := range products {
						if products[i].Key() == item.Key() {
							products[i].Stock -= item.Quantity
							break
						}
					}
				}

				remaining := products[:0:0]
				for _, p := range products {
					if p.Stock > 0 {
						remaining = append(remaining, p)
					}
				}
				for _, p := range products {
					if p.Stock == 0 && !imageReferenced(remaining, p.ImageURL) {
						staleImages = append(staleImages, p.ImageURL)
					}
				}

				carts, err := store.ReadArray[domain.Cart](s.carts.Path())
				if err != nil {
					return err
				}
				if idx := indexByOwner(carts, order.OwnerID); idx >= 0 {
					carts = append(carts[:idx:idx], carts[idx+1:]...)
				}

				orders, err := store.ReadArray[domain.Order](s.orders.Path())
				if err != nil {
					return err
				}
				order.CreatedAt = time.Now().UTC()
				orders = append(orders, order)

				if err := store.WriteArray(s.products.Path(), remaining); err != nil {
					return err
				}
				if err := store.WriteArray(s.carts.Path(), carts); err != nil {
					return err
				}
				return store.WriteArray(s.orders.Path(), orders)
			})
		})
	})
	if err != nil {
		return nil, err
	}

	for _, img := range staleImages {
		if err := s.images.Remove(img); err != nil {
			s.logger.Warn("Failed to remove image file", zap.String("image", img), zap.Error(err))
		}
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("owner", order.OwnerID),
		zap.Float64("total", order.TotalPrice),
	)
	return &order, nil
}

func validateOrderInput(input CreateOrderInput) error {
	if strings.TrimSpace(input.OwnerID) == "" {
		return apperror.Field(apperror.KindValidation, "owner", "order owner is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return apperror.Field(apperror.KindValidation, "customerName", "customer name is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return apperror.Field(apperror.KindValidation, "phone", "phone is required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return apperror.Field(apperror.KindValidation, "address", "address is required")
	}
	switch input.PaymentMethod {
	case domain.PaymentMethodCOD:
	case domain.PaymentMethodCard:
		if input.PaymentDetails.CardNumber == "" || input.PaymentDetails.CardHolder == "" || input.PaymentDetails.CardExpiry == "" {
			return apperror.Field(apperror.KindValidation, "paymentDetails", "card number, holder and expiry are required for card payments")
		}
	default:
		return apperror.Field(apperror.KindValidation, "paymentMethod", "payment method must be cod or card")
	}
	if input.TotalPrice <= 0 {
		return apperror.Field(apperror.KindValidation, "totalPrice", "total price must be greater than zero")
	}
	if len(input.CartItems) == 0 {
		return apperror.Field(apperror.KindValidation, "cartItems", "order must contain at least one item")
	}
	for _, item := range input.CartItems {
		if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Brand) == "" || strings.TrimSpace(item.Material) == "" {
			return apperror.Field(apperror.KindValidation, "cartItems", "every item needs name, brand and material")
		}
		if item.Quantity < 1 {
			return apperror.Field(apperror.KindValidation, "cartItems", "every item quantity must be at least 1")
		}
	}
	return nil
}

// checkItemsAgainstCatalog verifies every item resolves to a catalog record
// with enough stock. Quantities are aggregated per product triple first, so
// duplicate lines for the same product cannot pass individually and oversell
// in combination.
func checkItemsAgainstCatalog(items []domain.CartItem, products []domain.Product) error {
	need := make(map[domain.ProductKey]int, len(items))
	for _, item := range items {
		need[item.Key()] += item.Quantity
	}

	for _, item := range items {
		idx := -1
		for i := range products {
			if products[i].Key() == item.Key() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperror.Newf(apperror.KindNotFound, "product %q is no longer available", item.Name)
		}
		if products[idx].Stock < need[item.Key()] {
			return apperror.Newf(apperror.KindValidation, "insufficient stock for %q", item.Name)
		}
	}
	return nil
}
