package transport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/middleware"
	"jewelry-backend/internal/service"
)

// AddItemRequest adds quantity units of a product to the caller's cart.
type AddItemRequest struct {
	GuestID  string `json:"guestId"`
	Name     string `json:"name" validate:"required"`
	Brand    string `json:"brand" validate:"required"`
	Material string `json:"material" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// RemoveItemRequest removes one product line from the caller's cart.
type RemoveItemRequest struct {
	GuestID  string `json:"guestId"`
	Name     string `json:"name" validate:"required"`
	Brand    string `json:"brand" validate:"required"`
	Material string `json:"material" validate:"required"`
}

// CartHandler handles HTTP requests for cart operations. The cart owner is
// the authenticated user when a token is present, otherwise the caller's
// guest id.
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{cartService: cartService, logger: logger}
}

// RegisterRoutes registers the cart routes behind optional authentication.
func (h *CartHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.Get)
		r.Post("/items", h.AddItem)
		r.Delete("/items", h.RemoveItem)
	})
}

// Get returns the caller's cart, empty when none exists.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := resolveOwner(r, r.URL.Query().Get("guestId"))
	if err != nil {
		middleware.RespondWithAppError(w, err)
		return
	}

	cart, err := h.cartService.Get(r.Context(), owner)
	if err != nil {
		h.logger.Error("Failed to read cart", zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// AddItem puts a product line into the caller's cart.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
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

	key := domain.ProductKey{Name: req.Name, Brand: req.Brand, Material: req.Material}
	cart, err := h.cartService.Add(r.Context(), owner, key, req.Quantity)
	if err != nil {
		h.logger.Debug("Cart add rejected", zap.String("owner", owner), zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// RemoveItem drops a product line from the caller's cart.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var req RemoveItemRequest
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

	key := domain.ProductKey{Name: req.Name, Brand: req.Brand, Material: req.Material}
	cart, err := h.cartService.RemoveItem(r.Context(), owner, key)
	if err != nil {
		h.logger.Debug("Cart remove rejected", zap.String("owner", owner), zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// resolveOwner picks the request's cart/order owner: the verified identity
// claim wins, otherwise the caller-supplied guest id.
func resolveOwner(r *http.Request, guestID string) (string, error) {
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		return userID, nil
	}
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return "", apperror.Field(apperror.KindValidation, "guestId", "guestId is required for unauthenticated requests")
	}
	return guestID, nil
}
