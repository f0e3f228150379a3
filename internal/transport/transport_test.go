package transport

import (
	"bytes"
	"context"
	"mime/multipart"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jewelry-backend/internal/blob"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/middleware"
	"jewelry-backend/internal/service"
	"jewelry-backend/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	router  chi.Router
	catalog service.CatalogService
	images  *blob.MemoryStore
}

// newTestServer wires the full route tree over in-memory locking and
// throwaway data files, mirroring the production assembly.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	locker := store.NewMemoryLocker()
	dir := t.TempDir()

	products := store.NewCollection[domain.Product](locker, filepath.Join(dir, "products.json"))
	carts := store.NewCollection[domain.Cart](locker, filepath.Join(dir, "carts.json"))
	orders := store.NewCollection[domain.Order](locker, filepath.Join(dir, "orders.json"))
	images := blob.NewMemoryStore()

	catalog := service.NewCatalogService(products, images, logger)
	cartService := service.NewCartService(carts, catalog, logger)
	orderService := service.NewOrderService(locker, products, carts, orders, images, logger)
	importer := service.NewImportService(products, logger)
	authService, err := service.NewAuthService("admin", "s3cret-pass", testJWTSecret, time.Hour, logger)
	require.NoError(t, err)

	auth := middleware.AuthMiddleware(testJWTSecret, logger)
	optionalAuth := middleware.OptionalAuthMiddleware(testJWTSecret, logger)
	admin := middleware.RequireAdmin(logger)

	r := chi.NewRouter()
	NewAuthHandler(authService, logger).RegisterRoutes(r, nil)
	NewProductHandler(catalog, importer, logger).RegisterRoutes(r, auth, admin)
	NewCartHandler(cartService, logger).RegisterRoutes(r, optionalAuth)
	NewOrderHandler(orderService, logger).RegisterRoutes(r, optionalAuth, auth, admin)

	return &testServer{router: r, catalog: catalog, images: images}
}

// bearerToken signs a token the auth middleware accepts.
func bearerToken(t *testing.T, userID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func adminToken(t *testing.T) string {
	return bearerToken(t, "admin", "admin")
}

// multipartForm builds a multipart body from text fields plus an optional
// file part.
func multipartForm(t *testing.T, fields map[string]string, fileField, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func productFormFields(name string) map[string]string {
	return map[string]string{
		"name":          name,
		"brand":         "Cartier",
		"type":          "Nhẫn",
		"material":      "18K Gold",
		"stock":         "5",
		"originalPrice": "1000",
		"salePrice":     "900",
	}
}

// seedProduct creates a catalog record directly through the service.
func (ts *testServer) seedProduct(t *testing.T, name string, stock int) *domain.Product {
	t.Helper()
	product, err := ts.catalog.Create(context.Background(), service.CreateProductInput{
		Name:          name,
		Brand:         "Cartier",
		Type:          "Nhẫn",
		Material:      "18K Gold",
		Stock:         stock,
		OriginalPrice: 1000,
		SalePrice:     900,
		ImageData:     []byte(name + " image bytes"),
		ImageName:     "ring.jpg",
	})
	require.NoError(t, err)
	return product
}
