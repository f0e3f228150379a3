package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/domain"
	"jewelry-backend/internal/store"
)

// ImportRow is one raw tabular row, cells still as strings in source order
// (Name, Brand, Type, Stock, OriginalPrice, SalePrice, Image, Material).
type ImportRow struct {
	Name          string
	Brand         string
	Type          string
	Stock         string
	OriginalPrice string
	SalePrice     string
	Image         string
	Material      string
}

// ImportService batch-inserts catalog records from spreadsheet rows using the
// catalog's validation and uniqueness rules. The batch is all-or-nothing: one
// invalid or colliding row rejects everything with no partial commit.
type ImportService interface {
	Import(ctx context.Context, rows []ImportRow) ([]domain.Product, error)
}

type importService struct {
	products *store.Collection[domain.Product]
	logger   *zap.Logger
}

// NewImportService creates an ImportService over the products collection.
func NewImportService(products *store.Collection[domain.Product], logger *zap.Logger) ImportService {
	return &importService{products: products, logger: logger}
}

// Import validates every row up front (rejecting the whole batch on the first
// invalid one), then under one catalog lock acquisition checks uniqueness
// against existing records and sibling rows, assigns ids and persists once.
func (s *importService) Import(ctx context.Context, rows []ImportRow) ([]domain.Product, error) {
	if len(rows) == 0 {
		return nil, apperror.New(apperror.KindValidation, "no rows to import")
	}

	candidates := make([]domain.Product, 0, len(rows))
	for i, row := range rows {
		candidate, err := parseImportRow(row)
		if err != nil {
			return nil, apperror.Newf(apperror.KindValidation, "row %d: %s", i+1, apperror.Message(err))
		}
		candidates = append(candidates, candidate)
	}

	var inserted []domain.Product
	err := s.products.Update(ctx, func(products []domain.Product) ([]domain.Product, error) {
		seen := make(map[domain.ProductKey]int, len(products))
		for i, p := range products {
			seen[p.Key()] = i
		}

		inserted = inserted[:0]
		next := products
		for i, candidate := range candidates {
			if _, dup := seen[candidate.Key()]; dup {
				return nil, apperror.Newf(apperror.KindConflict,
					"row %d: a product with this name, brand and material already exists", i+1)
			}
			id, err := nextProductID(next, candidate.Type, candidate.Brand)
			if err != nil {
				return nil, err
			}
			candidate.ID = id
			seen[candidate.Key()] = len(next)
			next = append(next, candidate)
			inserted = append(inserted, candidate)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bulk import committed", zap.Int("rows", len(inserted)))
	return inserted, nil
}

// parseImportRow maps a raw row to the shape Create expects and runs the
// identical field checks.
func parseImportRow(row ImportRow) (domain.Product, error) {
	candidate := domain.Product{
		Name:     strings.TrimSpace(row.Name),
		Brand:    strings.TrimSpace(row.Brand),
		Type:     strings.TrimSpace(row.Type),
		Material: strings.TrimSpace(row.Material),
		ImageURL: strings.TrimSpace(row.Image),
		Version:  0,
	}

	stock, err := strconv.Atoi(strings.TrimSpace(row.Stock))
	if err != nil {
		return domain.Product{}, apperror.Field(apperror.KindValidation, "stock", "stock must be a non-negative integer")
	}
	candidate.Stock = stock

	original, err := strconv.ParseFloat(strings.TrimSpace(row.OriginalPrice), 64)
	if err != nil {
		return domain.Product{}, apperror.Field(apperror.KindValidation, "originalPrice", "original price must be a number")
	}
	candidate.OriginalPrice = original

	if sale := strings.TrimSpace(row.SalePrice); sale != "" {
		parsed, err := strconv.ParseFloat(sale, 64)
		if err != nil {
			return domain.Product{}, apperror.Field(apperror.KindValidation, "salePrice", "sale price must be a number")
		}
		candidate.SalePrice = parsed
	}

	if err := validateProductFields(candidate); err != nil {
		return domain.Product{}, err
	}
	return candidate, nil
}
