package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/middleware"
	"jewelry-backend/internal/service"
)

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	GuestID        string                `json:"guestId"`
	CustomerName   string                `json:"customerName" validate:"required"`
	Phone          string                `json:"phone" validate:"required"`
	Address        string                `json:"address" validate:"required"`
	PaymentMethod  string                `json:"paymentMethod" validate:"required,oneof=cod card"`
	PaymentDetails domain.PaymentDetails `json:"paymentDetails"`
	CartItems      []domain.CartItem     `json:"cartItems" validate:"required,min=1"`
	TotalPrice     float64               `json:"totalPrice" validate:"required,gt=0"`
}

// OrderHandler handles HTTP requests for order operations.
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, logger: logger}
}

// RegisterRoutes registers order routes: checkout behind optional auth,
// listing behind admin auth.
func (h *OrderHandler) RegisterRoutes(r chi.Router, optionalAuth, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.With(optionalAuth).Post("/", h.Create)
		r.With(authMiddleware, adminMiddleware).Get("/", h.List)
	})
}

// Create places an order for the caller's cart snapshot.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner, err := resolveOwner(r, req.GuestID)
	if err != nil {
		middleware.RespondWithAppError(w, err)
		return
	}

	order, err := h.orderService.Create(r.Context(), service.CreateOrderInput{
		OwnerID:        owner,
		CustomerName:   req.CustomerName,
		Phone:          req.Phone,
		Address:        req.Address,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
		CartItems:      req.CartItems,
		TotalPrice:     req.TotalPrice,
	})
	if err != nil {
		h.logger.Debug("Order rejected", zap.String("owner", owner), zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// List returns all recorded orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}
