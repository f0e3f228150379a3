package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/blob"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/store"
)

// maxIDAttempts bounds code regeneration when a generated product id
// collides with an existing one.
const maxIDAttempts = 10

// CreateProductInput carries the fields for a new catalog record.
// ImageData/ImageName hold the uploaded image content.
type CreateProductInput struct {
	Name          string
	Brand         string
	Type          string
	Material      string
	Stock         int
	OriginalPrice float64
	SalePrice     float64
	ImageData     []byte
	ImageName     string
}

// UpdateProductInput is a partial update; nil fields are left untouched.
// ExpectedVersion, when supplied, must match the stored version or the
// update fails with a conflict.
type UpdateProductInput struct {
	Name            *string
	Brand           *string
	Type            *string
	Material        *string
	Stock           *int
	OriginalPrice   *float64
	SalePrice       *float64
	ExpectedVersion *int
	ImageData       []byte
	ImageName       string
}

// UpdateResult reports either the updated record or that the record was
// removed because its stock reached zero.
type UpdateResult struct {
	Product *domain.Product
	Deleted bool
}

// CatalogService owns the product catalog's domain rules: validation against
// the allowed attribute sets, sequential code identity, triple uniqueness,
// optimistic versioning and the image lifecycle.
type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	FindByKey(ctx context.Context, key domain.ProductKey) (*domain.Product, error)
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, input UpdateProductInput) (*UpdateResult, error)
	Delete(ctx context.Context, id string) error
}

type catalogService struct {
	products *store.Collection[domain.Product]
	images   blob.Store
	logger   *zap.Logger
}

// NewCatalogService creates a CatalogService over the products collection.
func NewCatalogService(products *store.Collection[domain.Product], images blob.Store, logger *zap.Logger) CatalogService {
	return &catalogService{products: products, images: images, logger: logger}
}

// List returns all catalog records from an unlocked snapshot read.
func (s *catalogService) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.Snapshot()
}

// FindByKey resolves a product by its (name, brand, material) triple from a
// snapshot read. Callers that decide writes on the result must re-validate
// under a lock.
func (s *catalogService) FindByKey(ctx context.Context, key domain.ProductKey) (*domain.Product, error) {
	products, err := s.products.Snapshot()
	if err != nil {
		return nil, err
	}
	key.Name = strings.TrimSpace(key.Name)
	key.Brand = strings.TrimSpace(key.Brand)
	key.Material = strings.TrimSpace(key.Material)
	for i := range products {
		if products[i].Key() == key {
			return &products[i], nil
		}
	}
	return nil, apperror.New(apperror.KindNotFound, "product not found")
}

// Create validates the input, stores the image (reusing an existing file when
// the content hash matches), and appends the record under the catalog lock
// with a freshly generated id and version 0.
func (s *catalogService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	candidate := domain.Product{
		Name:          strings.TrimSpace(input.Name),
		Brand:         strings.TrimSpace(input.Brand),
		Type:          strings.TrimSpace(input.Type),
		Material:      strings.TrimSpace(input.Material),
		Stock:         input.Stock,
		OriginalPrice: input.OriginalPrice,
		SalePrice:     input.SalePrice,
		Version:       0,
	}
	if err := validateProductFields(candidate); err != nil {
		return nil, err
	}
	if len(input.ImageData) == 0 {
		return nil, apperror.Field(apperror.KindValidation, "image", "product image is required")
	}

	imageURL, err := s.images.Save(input.ImageData, input.ImageName)
	if err != nil {
		return nil, err
	}
	candidate.ImageURL = imageURL

	var created domain.Product
	err = s.products.Update(ctx, func(products []domain.Product) ([]domain.Product, error) {
		// Uniqueness and identity are decided against the state read under
		// the lock, never the pre-lock snapshot.
		for _, p := range products {
			if p.Key() == candidate.Key() {
				return nil, apperror.New(apperror.KindConflict,
					"a product with this name, brand and material already exists")
			}
		}
		id, err := nextProductID(products, candidate.Type, candidate.Brand)
		if err != nil {
			return nil, err
		}
		candidate.ID = id
		created = candidate
		return append(products, candidate), nil
	})
	if err != nil {
		s.cleanupImageIfOrphaned(imageURL)
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("id", created.ID),
		zap.String("name", created.Name),
	)
	return &created, nil
}

// Update applies a partial update under the catalog lock, enforcing the
// optimistic version check and removing the record when its stock lands on
// zero. Replaced or orphaned image files are deleted best-effort.
func (s *catalogService) Update(ctx context.Context, id string, input UpdateProductInput) (*UpdateResult, error) {
	if err := validatePartialFields(input); err != nil {
		return nil, err
	}

	newImageURL := ""
	if len(input.ImageData) > 0 {
		url, err := s.images.Save(input.ImageData, input.ImageName)
		if err != nil {
			return nil, err
		}
		newImageURL = url
	}

	result := &UpdateResult{}
	var staleImage string
	err := s.products.Update(ctx, func(products []domain.Product) ([]domain.Product, error) {
		idx := indexByID(products, id)
		if idx < 0 {
			return nil, apperror.New(apperror.KindNotFound, "product not found")
		}
		current := products[idx]

		if input.ExpectedVersion != nil && *input.ExpectedVersion != current.Version {
			return nil, apperror.Newf(apperror.KindConflict,
				"product was modified by someone else (expected version %d, stored version %d)",
				*input.ExpectedVersion, current.Version)
		}

		updated := mergeProduct(current, input)
		if newImageURL != "" {
			updated.ImageURL = newImageURL
		}
		updated.Version = current.Version + 1

		if updated.Key() != current.Key() {
			for i, p := range products {
				if i != idx && p.Key() == updated.Key() {
					return nil, apperror.New(apperror.KindConflict,
						"a product with this name, brand and material already exists")
				}
			}
		}

		if updated.Stock == 0 {
			// Zero stock is a removal signal, not a state to persist.
			next := append(products[:idx:idx], products[idx+1:]...)
			if !imageReferenced(next, current.ImageURL) {
				staleImage = current.ImageURL
			}
			result.Deleted = true
			return next, nil
		}

		if newImageURL != "" && newImageURL != current.ImageURL {
			next := make([]domain.Product, len(products))
			copy(next, products)
			next[idx] = updated
			if !imageReferenced(next, current.ImageURL) {
				staleImage = current.ImageURL
			}
			result.Product = &updated
			return next, nil
		}

		products[idx] = updated
		result.Product = &updated
		return products, nil
	})
	if err != nil {
		s.cleanupImageIfOrphaned(newImageURL)
		return nil, err
	}

	s.cleanupImage(staleImage)
	if result.Deleted {
		s.logger.Info("Product removed after stock reached zero", zap.String("id", id))
	} else {
		s.logger.Info("Product updated",
			zap.String("id", id),
			zap.Int("version", result.Product.Version),
		)
	}
	return result, nil
}

// Delete removes the record by id under the catalog lock and deletes its
// image file best-effort when nothing else references it.
func (s *catalogService) Delete(ctx context.Context, id string) error {
	var staleImage string
	err := s.products.Update(ctx, func(products []domain.Product) ([]domain.Product, error) {
		idx := indexByID(products, id)
		if idx < 0 {
			return nil, apperror.New(apperror.KindNotFound, "product not found")
		}
		removed := products[idx]
		next := append(products[:idx:idx], products[idx+1:]...)
		if !imageReferenced(next, removed.ImageURL) {
			staleImage = removed.ImageURL
		}
		return next, nil
	})
	if err != nil {
		return err
	}

	s.cleanupImage(staleImage)
	s.logger.Info("Product deleted", zap.String("id", id))
	return nil
}

// cleanupImageIfOrphaned removes an image saved for an operation that then
// failed. Because storage is content-addressed, Save may have returned the
// path of a file another record already references; that file must survive
// the failure, so removal happens only when no record points at it.
func (s *catalogService) cleanupImageIfOrphaned(imageURL string) {
	if imageURL == "" {
		return
	}
	products, err := s.products.Snapshot()
	if err != nil {
		s.logger.Warn("Skipping image cleanup, catalog unreadable",
			zap.String("image", imageURL),
			zap.Error(err),
		)
		return
	}
	if imageReferenced(products, imageURL) {
		return
	}
	s.cleanupImage(imageURL)
}

// cleanupImage deletes an image file that no record references anymore.
// Failures are logged, never escalated, so they cannot mask a primary error.
func (s *catalogService) cleanupImage(imageURL string) {
	if imageURL == "" {
		return
	}
	if err := s.images.Remove(imageURL); err != nil {
		s.logger.Warn("Failed to remove image file",
			zap.String("image", imageURL),
			zap.Error(err),
		)
	}
}

func indexByID(products []domain.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func imageReferenced(products []domain.Product, imageURL string) bool {
	if imageURL == "" {
		return false
	}
	for _, p := range products {
		if p.ImageURL == imageURL {
			return true
		}
	}
	return false
}

func mergeProduct(current domain.Product, input UpdateProductInput) domain.Product {
	updated := current
	if input.Name != nil {
		updated.Name = strings.TrimSpace(*input.Name)
	}
	if input.Brand != nil {
		updated.Brand = strings.TrimSpace(*input.Brand)
	}
	if input.Type != nil {
		updated.Type = strings.TrimSpace(*input.Type)
	}
	if input.Material != nil {
		updated.Material = strings.TrimSpace(*input.Material)
	}
	if input.Stock != nil {
		updated.Stock = *input.Stock
	}
	if input.OriginalPrice != nil {
		updated.OriginalPrice = *input.OriginalPrice
	}
	if input.SalePrice != nil {
		updated.SalePrice = *input.SalePrice
	}
	return updated
}

// nextProductID generates the next sequential code for the (type, brand)
// prefix: scan ids with that prefix, take the max numeric suffix, increment,
// zero-pad to 4 digits. Regeneration on collision is bounded; running out of
// attempts or the 4-digit space fails the operation.
func nextProductID(products []domain.Product, productType, brand string) (string, error) {
	prefix := domain.Initial(productType) + domain.Initial(brand)

	maxSuffix := 0
	for _, p := range products {
		suffix := strings.TrimPrefix(p.ID, prefix)
		if suffix == p.ID || len(suffix) != 4 {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > maxSuffix {
			maxSuffix = n
		}
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		seq := maxSuffix + 1 + attempt
		if seq > 9999 {
			break
		}
		id := fmt.Sprintf("%s%04d", prefix, seq)
		if indexByID(products, id) < 0 {
			return id, nil
		}
	}
	return "", apperror.Newf(apperror.KindConflict, "identity space exhausted for prefix %s", prefix)
}

// validateProductFields runs the full-field checks Create and Bulk Import
// share. Values are expected to be trimmed already.
func validateProductFields(p domain.Product) error {
	if p.Name == "" {
		return apperror.Field(apperror.KindValidation, "name", "name is required")
	}
	if !domain.ValidBrand(p.Brand) {
		return apperror.Field(apperror.KindValidation, "brand", "brand is not in the allowed set")
	}
	if !domain.ValidType(p.Type) {
		return apperror.Field(apperror.KindValidation, "type", "type is not in the allowed set")
	}
	if !domain.ValidMaterial(p.Material) {
		return apperror.Field(apperror.KindValidation, "material", "material is not in the allowed set")
	}
	if p.Stock < 0 {
		return apperror.Field(apperror.KindValidation, "stock", "stock must be a non-negative integer")
	}
	if p.OriginalPrice <= 0 {
		return apperror.Field(apperror.KindValidation, "originalPrice", "original price must be greater than zero")
	}
	if p.SalePrice < 0 {
		return apperror.Field(apperror.KindValidation, "salePrice", "sale price must not be negative")
	}
	return nil
}

// validatePartialFields validates each supplied update field independently,
// with the same rules as validateProductFields.
func validatePartialFields(input UpdateProductInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return apperror.Field(apperror.KindValidation, "name", "name is required")
	}
	if input.Brand != nil && !domain.ValidBrand(strings.TrimSpace(*input.Brand)) {
		return apperror.Field(apperror.KindValidation, "brand", "brand is not in the allowed set")
	}
	if input.Type != nil && !domain.ValidType(strings.TrimSpace(*input.Type)) {
		return apperror.Field(apperror.KindValidation, "type", "type is not in the allowed set")
	}
	if input.Material != nil && !domain.ValidMaterial(strings.TrimSpace(*input.Material)) {
		return apperror.Field(apperror.KindValidation, "material", "material is not in the allowed set")
	}
	if input.Stock != nil && *input.Stock < 0 {
		return apperror.Field(apperror.KindValidation, "stock", "stock must be a non-negative integer")
	}
	if input.OriginalPrice != nil && *input.OriginalPrice <= 0 {
		return apperror.Field(apperror.KindValidation, "originalPrice", "original price must be greater than zero")
	}
	if input.SalePrice != nil && *input.SalePrice < 0 {
		return apperror.Field(apperror.KindValidation, "salePrice", "sale price must not be negative")
	}
	return nil
}
