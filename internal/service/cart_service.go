package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/store"
)

// CartService manages per-owner item lists. Stock is only pre-checked here
// against a catalog snapshot; the Order Processor re-validates it under the
// catalog lock at checkout.
type CartService interface {
	Add(ctx context.Context, owner string, key domain.ProductKey, quantity int) (*domain.Cart, error)
	Get(ctx context.Context, owner string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner string, key domain.ProductKey) (*domain.Cart, error)
}

type cartService struct {
	carts   *store.Collection[domain.Cart]
	catalog CatalogService
	logger  *zap.Logger
}

// NewCartService creates a CartService over the carts collection.
func NewCartService(carts *store.Collection[domain.Cart], catalog CatalogService, logger *zap.Logger) CartService {
	return &cartService{carts: carts, catalog: catalog, logger: logger}
}

// Add puts quantity units of the product identified by key into the owner's
// cart, creating the cart and the line item as needed. Repeated adds for the
// same triple accumulate.
func (s *cartService) Add(ctx context.Context, owner string, key domain.ProductKey, quantity int) (*domain.Cart, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, apperror.Field(apperror.KindValidation, "owner", "cart owner is required")
	}
	if quantity < 1 {
		return nil, apperror.Field(apperror.KindValidation, "quantity", "quantity must be at least 1")
	}

	product, err := s.catalog.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, apperror.Field(apperror.KindValidation, "quantity", "insufficient stock")
	}

	var result domain.Cart
	err = s.carts.Update(ctx, func(carts []domain.Cart) ([]domain.Cart, error) {
		idx := indexByOwner(carts, owner)
		if idx < 0 {
			carts = append(carts, domain.Cart{OwnerID: owner, Items: []domain.CartItem{}})
			idx = len(carts) - 1
		}

		cart := &carts[idx]
		found := false
		for i := range cart.Items {
			if cart.Items[i].Key() == product.Key() {
				cart.Items[i].Quantity += quantity
				found = true
				break
			}
		}
		if !found {
			cart.Items = append(cart.Items, domain.CartItem{
				Name:     product.Name,
				Brand:    product.Brand,
				Material: product.Material,
				Quantity: quantity,
			})
		}

		result = *cart
		return carts, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Item added to cart",
		zap.String("owner", owner),
		zap.String("product", product.ID),
		zap.Int("quantity", quantity),
	)
	return &result, nil
}

// Get returns the owner's cart, or an empty cart shape when none exists.
// It never fails on a missing cart.
func (s *cartService) Get(ctx context.Context, owner string) (*domain.Cart, error) {
	owner = strings.TrimSpace(owner)
	carts, err := s.carts.Snapshot()
	if err != nil {
		return nil, err
	}
	if idx := indexByOwner(carts, owner); idx >= 0 {
		return &carts[idx], nil
	}
	return &domain.Cart{OwnerID: owner, Items: []domain.CartItem{}}, nil
}

// RemoveItem drops the line for key from the owner's cart. When the last item
// goes, the cart record is removed entirely rather than left as an empty
// shell.
func (s *cartService) RemoveItem(ctx context.Context, owner string, key domain.ProductKey) (*domain.Cart, error) {
	owner = strings.TrimSpace(owner)
	key.Name = strings.TrimSpace(key.Name)
	key.Brand = strings.TrimSpace(key.Brand)
	key.Material = strings.TrimSpace(key.Material)

	var result domain.Cart
	err := s.carts.Update(ctx, func(carts []domain.Cart) ([]domain.Cart, error) {
		idx := indexByOwner(carts, owner)
		if idx < 0 {
			return nil, apperror.New(apperror.KindNotFound, "cart not found")
		}

		cart := carts[idx]
		itemIdx := -1
		for i := range cart.Items {
			if cart.Items[i].Key() == key {
				itemIdx = i
				break
			}
		}
		if itemIdx < 0 {
			return nil, apperror.New(apperror.KindNotFound, "item not found in cart")
		}

		cart.Items = append(cart.Items[:itemIdx:itemIdx], cart.Items[itemIdx+1:]...)
		if len(cart.Items) == 0 {
			result = domain.Cart{OwnerID: owner, Items: []domain.CartItem{}}
			return append(carts[:idx:idx], carts[idx+1:]...), nil
		}

		carts[idx] = cart
		result = cart
		return carts, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Item removed from cart", zap.String("owner", owner))
	return &result, nil
}

func indexByOwner(carts []domain.Cart, owner string) int {
	for i := range carts {
		if carts[i].OwnerID == owner {
			return i
		}
	}
	return -1
}
