package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/blob"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/store"
)

type orderEnv struct {
	*cartEnv
	orders       *store.Collection[domain.Order]
	orderService OrderService
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	env := newCartEnv(t)
	orders := store.NewCollection[domain.Order](env.locker, filepath.Join(t.TempDir(), "orders.json"))
	return &orderEnv{
		cartEnv: env,
		orders:  orders,
		orderService: NewOrderService(
			env.locker, env.products, env.carts, orders, env.images, zap.NewNop(),
		),
	}
}

func validOrderInput(owner string, items []domain.CartItem, total float64) CreateOrderInput {
	return CreateOrderInput{
		OwnerID:       owner,
		CustomerName:  "Nguyen Van A",
		Phone:         "0901234567",
		Address:       "12 Tran Hung Dao, Q1, HCMC",
		PaymentMethod: domain.PaymentMethodCOD,
		CartItems:     items,
		TotalPrice:    total,
	}
}

func TestCreateOrder_CheckoutScenario(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	product, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)
	require.Equal(t, "NC0001", product.ID)
	require.Equal(t, 5, product.Stock)

	cart, err := env.cartService.Add(ctx, "g1", product.Key(), 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Quantity)

	order, err := env.orderService.Create(ctx, validOrderInput("g1", cart.Items, 2700))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.False(t, order.CreatedAt.IsZero())
	require.Len(t, order.CartItems, 1)
	assert.Equal(t, 3, order.CartItems[0].Quantity)

	// Stock decremented to 2.
	updated, err := env.catalog.FindByKey(ctx, product.Key())
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Stock)

	// The owner's cart is superseded by the order.
	remaining, err := env.cartService.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, remaining.Items)
	carts, err := env.carts.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, carts)

	// Exactly one immutable record was appended.
	orders, err := env.orderService.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "g1", orders[0].OwnerID)

	// A fresh 10-unit add against the now-2-stock product is rejected.
	_, err = env.cartService.Add(ctx, "g1", product.Key(), 10)
	require.Error(t, err)
	assert.Contains(t, apperror.Message(err), "insufficient stock")
}

func TestCreateOrder_AllOrNothing(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	ringA, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)
	ringB, err := env.catalog.Create(ctx, validCreateInput("Ring B"))
	require.NoError(t, err)

	items := []domain.CartItem{
		{Name: ringA.Name, Brand: ringA.Brand, Material: ringA.Material, Quantity: 2},
		{Name: ringB.Name, Brand: ringB.Brand, Material: ringB.Material, Quantity: 99},
	}

	_, err = env.orderService.Create(ctx, validOrderInput("g1", items, 1000))
	require.Error(t, err)
	assert.Contains(t, apperror.Message(err), "insufficient stock")

	// Nothing moved: no stock decrement, no order appended.
	a, err := env.catalog.FindByKey(ctx, ringA.Key())
	require.NoError(t, err)
	assert.Equal(t, 5, a.Stock)
	b, err := env.catalog.FindByKey(ctx, ringB.Key())
	require.NoError(t, err)
	assert.Equal(t, 5, b.Stock)

	orders, err := env.orderService.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_DuplicateLinesCannotOversell(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	product, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)
	require.Equal(t, 5, product.Stock)

	// Two lines for the same product, each within stock on its own but 6 in
	// total against 5 units.
	items := []domain.CartItem{
		{Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 3},
		{Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 3},
	}
	_, err = env.orderService.Create(ctx, validOrderInput("g1", items, 5400))
	require.Error(t, err)
	assert.Contains(t, apperror.Message(err), "insufficient stock")

	current, err := env.catalog.FindByKey(ctx, product.Key())
	require.NoError(t, err)
	assert.Equal(t, 5, current.Stock, "rejected order must not decrement stock")
	orders, err := env.orderService.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_DuplicateLinesWithinStockSucceed(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	product, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)

	items := []domain.CartItem{
		{Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 3},
		{Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 2},
	}
	order, err := env.orderService.Create(ctx, validOrderInput("g1", items, 4500))
	require.NoError(t, err)
	require.Len(t, order.CartItems, 2)

	// Both lines decremented: 5 units gone, record removed.
	products, err := env.catalog.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreateOrder_DrainedProductIsRemoved(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	product, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)

	items := []domain.CartItem{{
		Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 5,
	}}
	_, err = env.orderService.Create(ctx, validOrderInput("g1", items, 4500))
	require.NoError(t, err)

	products, err := env.catalog.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products, "fully ordered stock removes the record")
	assert.False(t, env.images.Has(product.ImageURL), "orphaned image is removed")
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	env := newOrderEnv(t)

	items := []domain.CartItem{{Name: "Ghost", Brand: "Cartier", Material: "18K Gold", Quantity: 1}}
	_, err := env.orderService.Create(context.Background(), validOrderInput("g1", items, 100))
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestCreateOrder_CardPaymentRequiresCardDetails(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	product, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)
	items := []domain.CartItem{{Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 1}}

	input := validOrderInput("g1", items, 900)
	input.PaymentMethod = domain.PaymentMethodCard
	_, err = env.orderService.Create(ctx, input)
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, "paymentDetails", apperror.FieldOf(err))

	input.PaymentDetails = domain.PaymentDetails{
		CardNumber: "4111111111111111",
		CardHolder: "NGUYEN VAN A",
		CardExpiry: "12/27",
	}
	order, err := env.orderService.Create(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCard, order.PaymentMethod)
}

func TestCreateOrder_Validation(t *testing.T) {
	items := []domain.CartItem{{Name: "Ring A", Brand: "Cartier", Material: "18K Gold", Quantity: 1}}

	tests := []struct {
		name   string
		mutate func(*CreateOrderInput)
		field  string
	}{
		{"missing owner", func(in *CreateOrderInput) { in.OwnerID = " " }, "owner"},
		{"missing customer name", func(in *CreateOrderInput) { in.CustomerName = "" }, "customerName"},
		{"missing phone", func(in *CreateOrderInput) { in.Phone = "" }, "phone"},
		{"missing address", func(in *CreateOrderInput) { in.Address = "" }, "address"},
		{"bad payment method", func(in *CreateOrderInput) { in.PaymentMethod = "bitcoin" }, "paymentMethod"},
		{"zero total", func(in *CreateOrderInput) { in.TotalPrice = 0 }, "totalPrice"},
		{"no items", func(in *CreateOrderInput) { in.CartItems = nil }, "cartItems"},
		{"zero quantity item", func(in *CreateOrderInput) { in.CartItems[0].Quantity = 0 }, "cartItems"},
		{"item missing brand", func(in *CreateOrderInput) { in.CartItems[0].Brand = "" }, "cartItems"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newOrderEnv(t)
			cloned := make([]domain.CartItem, len(items))
			copy(cloned, items)
			input := validOrderInput("g1", cloned, 900)
			tt.mutate(&input)

			_, err := env.orderService.Create(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Equal(t, tt.field, apperror.FieldOf(err))
		})
	}
}

// recordingLocker wraps a Locker and records the order resources are acquired
// in.
type recordingLocker struct {
	store.Locker
	mu       sync.Mutex
	acquired []string
}

func (l *recordingLocker) WithExclusive(ctx context.Context, resource string, fn func() error) error {
	l.mu.Lock()
	l.acquired = append(l.acquired, resource)
	l.mu.Unlock()
	return l.Locker.WithExclusive(ctx, resource, fn)
}

func (l *recordingLocker) reset() {
	l.mu.Lock()
	l.acquired = nil
	l.mu.Unlock()
}

func TestCreateOrder_HoldsAllThreeResourceLocks(t *testing.T) {
	rec := &recordingLocker{Locker: store.NewMemoryLocker()}
	dir := t.TempDir()
	products := store.NewCollection[domain.Product](rec, filepath.Join(dir, "products.json"))
	carts := store.NewCollection[domain.Cart](rec, filepath.Join(dir, "carts.json"))
	orders := store.NewCollection[domain.Order](rec, filepath.Join(dir, "orders.json"))
	images := blob.NewMemoryStore()
	catalog := NewCatalogService(products, images, zap.NewNop())
	orderService := NewOrderService(rec, products, carts, orders, images, zap.NewNop())
	ctx := context.Background()

	product, err := catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)
	rec.reset()

	items := []domain.CartItem{{Name: product.Name, Brand: product.Brand, Material: product.Material, Quantity: 1}}
	_, err = orderService.Create(ctx, validOrderInput("g1", items, 900))
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"products.json", "carts.json", "orders.json"}, rec.acquired,
		"checkout takes the cart and order locks nested inside the catalog lock, in fixed order")
}

func TestCreateOrder_OnlyOwnersCartIsDropped(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()

	product, err := env.catalog.Create(ctx, validCreateInput("Ring A"))
	require.NoError(t, err)

	g1Cart, err := env.cartService.Add(ctx, "g1", product.Key(), 1)
	require.NoError(t, err)
	_, err = env.cartService.Add(ctx, "g2", product.Key(), 1)
	require.NoError(t, err)

	_, err = env.orderService.Create(ctx, validOrderInput("g1", g1Cart.Items, 900))
	require.NoError(t, err)

	carts, err := env.carts.Snapshot()
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, "g2", carts[0].OwnerID)
}
