package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelry-backend/internal/domain"
)

func addItemBody(guestID, name string, quantity int) string {
	body, _ := json.Marshal(map[string]interface{}{
		"guestId":  guestID,
		"name":     name,
		"brand":    "Cartier",
		"material": "18K Gold",
		"quantity": quantity,
	})
	return string(body)
}

func TestGetCart_AnonymousWithoutGuestIDRejected(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "guestId")
}

func TestCart_AddAndGetFlow(t *testing.T) {
	ts := newTestServer(t)
	product := ts.seedProduct(t, "Ring A", 5)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(addItemBody("g1", product.Name, 3)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/cart?guestId=g1", nil)
	getW := httptest.NewRecorder()
	ts.router.ServeHTTP(getW, getReq)

	require.Equal(t, http.StatusOK, getW.Code)

	var cart domain.Cart
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &cart))
	assert.Equal(t, "g1", cart.OwnerID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddItem_ValidationErrorsInEnvelope(t *testing.T) {
	ts := newTestServer(t)

	body := `{"guestId":"g1","brand":"Cartier","material":"18K Gold","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_errors")
}

func TestAddItem_InsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	product := ts.seedProduct(t, "Ring A", 2)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(addItemBody("g1", product.Name, 3)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient stock")
}

func TestCart_AuthenticatedIdentityOverridesGuestID(t *testing.T) {
	ts := newTestServer(t)
	product := ts.seedProduct(t, "Ring A", 5)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(addItemBody("g1", product.Name, 1)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-7", "user"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// The guest id in the body is ignored when a token is present.
	getReq := httptest.NewRequest(http.MethodGet, "/api/cart?guestId=g1", nil)
	getW := httptest.NewRecorder()
	ts.router.ServeHTTP(getW, getReq)
	var guestCart domain.Cart
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &guestCart))
	assert.Empty(t, guestCart.Items)

	authReq := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	authReq.Header.Set("Authorization", bearerToken(t, "user-7", "user"))
	authW := httptest.NewRecorder()
	ts.router.ServeHTTP(authW, authReq)
	var userCart domain.Cart
	require.NoError(t, json.Unmarshal(authW.Body.Bytes(), &userCart))
	require.Len(t, userCart.Items, 1)
}

func TestRemoveItem_Endpoint(t *testing.T) {
	ts := newTestServer(t)
	product := ts.seedProduct(t, "Ring A", 5)

	addReq := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(addItemBody("g1", product.Name, 2)))
	addReq.Header.Set("Content-Type", "application/json")
	addW := httptest.NewRecorder()
	ts.router.ServeHTTP(addW, addReq)
	require.Equal(t, http.StatusOK, addW.Code)

	body, _ := json.Marshal(map[string]string{
		"guestId":  "g1",
		"name":     product.Name,
		"brand":    product.Brand,
		"material": product.Material,
	})
	removeReq := httptest.NewRequest(http.MethodDelete, "/api/cart/items", strings.NewReader(string(body)))
	removeReq.Header.Set("Content-Type", "application/json")
	removeW := httptest.NewRecorder()
	ts.router.ServeHTTP(removeW, removeReq)

	require.Equal(t, http.StatusOK, removeW.Code)

	var cart domain.Cart
	require.NoError(t, json.Unmarshal(removeW.Body.Bytes(), &cart))
	assert.Empty(t, cart.Items)
}
