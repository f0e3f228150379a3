package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jewelry-backend/internal/blob"
	"jewelry-backend/internal/config"
	"jewelry-backend/internal/domain"
	custommiddleware "jewelry-backend/internal/middleware"
	"jewelry-backend/internal/service"
	"jewelry-backend/internal/store"
	"jewelry-backend/internal/transport"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env != "production"))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize the record store: one JSON-array file per entity kind, all
	// guarded by advisory locks in the data directory.
	locker := store.NewFileLocker(cfg.Storage.DataDir, logger)
	products := store.NewCollection[domain.Product](locker, filepath.Join(cfg.Storage.DataDir, "products.json"))
	carts := store.NewCollection[domain.Cart](locker, filepath.Join(cfg.Storage.DataDir, "carts.json"))
	orders := store.NewCollection[domain.Order](locker, filepath.Join(cfg.Storage.DataDir, "orders.json"))

	images, err := blob.NewFileStore(cfg.Storage.UploadsDir, "/uploads", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	// Initialize services
	authService, err := service.NewAuthService(
		cfg.Admin.Username,
		cfg.Admin.Password,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	catalogService := service.NewCatalogService(products, images, logger)
	cartService := service.NewCartService(carts, catalogService, logger)
	orderService := service.NewOrderService(locker, products, carts, orders, images, logger)
	importService := service.NewImportService(products, logger)

	// Create middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	// Rate limiting for login is enabled only when Redis is configured.
	var redisClient *redis.Client
	var loginRateLimiter func(http.Handler) http.Handler
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		loginRateLimiter = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "login_rate_limit",
		}, logger)
	}

	// Register routes
	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, loginRateLimiter)
	transport.NewProductHandler(catalogService, importService, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)
	transport.NewCartHandler(cartService, logger).RegisterRoutes(router, optionalAuth)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, optionalAuth, authMiddleware, adminMiddleware)

	// Serve stored images by relative path
	router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Storage.UploadsDir))))

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
	}

	return server, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
