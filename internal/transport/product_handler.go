package transport

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
	"jewelry-backend/internal/middleware"
	"jewelry-backend/internal/service"
)

// maxUploadBytes bounds multipart parsing for product and import uploads.
const maxUploadBytes = 10 << 20

// ProductHandler handles HTTP requests for catalog operations, including the
// spreadsheet bulk import.
type ProductHandler struct {
	catalog  service.CatalogService
	importer service.ImportService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalog service.CatalogService, importer service.ImportService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, importer: importer, logger: logger}
}

// RegisterRoutes registers catalog routes. Listing is public; mutation and
// import require an authenticated admin.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Post("/import", h.Import)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns the full catalog.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Create handles the multipart product-create form: text fields plus the
// image file.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	input := service.CreateProductInput{
		Name:     r.FormValue("name"),
		Brand:    r.FormValue("brand"),
		Type:     r.FormValue("type"),
		Material: r.FormValue("material"),
	}

	var err error
	if input.Stock, err = parseIntField(r.FormValue("stock"), "stock"); err != nil {
		middleware.RespondWithAppError(w, err)
		return
	}
	if input.OriginalPrice, err = parseFloatField(r.FormValue("originalPrice"), "originalPrice"); err != nil {
		middleware.RespondWithAppError(w, err)
		return
	}
	if v := r.FormValue("salePrice"); v != "" {
		if input.SalePrice, err = parseFloatField(v, "salePrice"); err != nil {
			middleware.RespondWithAppError(w, err)
			return
		}
	}

	input.ImageData, input.ImageName, err = readImageFile(r)
	if err != nil {
		middleware.RespondWithAppError(w, err)
		return
	}

	product, err := h.catalog.Create(r.Context(), input)
	if err != nil {
		h.logger.Debug("Product creation rejected", zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles the multipart partial-update form. Only supplied fields
// change; expectedVersion, when present, enables the optimistic version check.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	input := service.UpdateProductInput{
		Name:     formValuePtr(r, "name"),
		Brand:    formValuePtr(r, "brand"),
		Type:     formValuePtr(r, "type"),
		Material: formValuePtr(r, "material"),
	}

	if v := formValuePtr(r, "stock"); v != nil {
		stock, err := parseIntField(*v, "stock")
		if err != nil {
			middleware.RespondWithAppError(w, err)
			return
		}
		input.Stock = &stock
	}
	if v := formValuePtr(r, "originalPrice"); v != nil {
		price, err := parseFloatField(*v, "originalPrice")
		if err != nil {
			middleware.RespondWithAppError(w, err)
			return
		}
		input.OriginalPrice = &price
	}
	if v := formValuePtr(r, "salePrice"); v != nil {
		price, err := parseFloatField(*v, "salePrice")
		if err != nil {
			middleware.RespondWithAppError(w, err)
			return
		}
		input.SalePrice = &price
	}
	if v := formValuePtr(r, "expectedVersion"); v != nil {
		version, err := parseIntField(*v, "expectedVersion")
		if err != nil {
			middleware.RespondWithAppError(w, err)
			return
		}
		input.ExpectedVersion = &version
	}

	if _, _, err := r.FormFile("image"); err == nil {
		data, name, err := readImageFile(r)
		if err != nil {
			middleware.RespondWithAppError(w, err)
			return
		}
		input.ImageData, input.ImageName = data, name
	}

	result, err := h.catalog.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Debug("Product update rejected", zap.String("id", id), zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}

	if result.Deleted {
		middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"deleted": true,
			"message": "product removed because its stock reached zero",
		})
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result.Product)
}

// Delete removes a product by id.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.logger.Debug("Product delete rejected", zap.String("id", id), zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// Import accepts an .xlsx upload and bulk-inserts its rows. Cells map
// positionally to Name, Brand, Type, Stock, OriginalPrice, SalePrice, Image,
// Material; the first row is treated as a header.
func (h *ProductHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "spreadsheet file is required")
		return
	}
	defer file.Close()

	rows, err := parseSpreadsheet(file)
	if err != nil {
		middleware.RespondWithAppError(w, err)
		return
	}

	products, err := h.importer.Import(r.Context(), rows)
	if err != nil {
		h.logger.Debug("Bulk import rejected", zap.Error(err))
		middleware.RespondWithAppError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"imported": len(products),
		"products": products,
	})
}

func parseSpreadsheet(file io.Reader) ([]service.ImportRow, error) {
	book, err := excelize.OpenReader(file)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "file is not a readable spreadsheet", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperror.New(apperror.KindValidation, "spreadsheet has no sheets")
	}
	cells, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "failed to read spreadsheet rows", err)
	}

	rows := make([]service.ImportRow, 0, len(cells))
	for i, row := range cells {
		if i == 0 {
			continue // header
		}
		rows = append(rows, service.ImportRow{
			Name:          cell(row, 0),
			Brand:         cell(row, 1),
			Type:          cell(row, 2),
			Stock:         cell(row, 3),
			OriginalPrice: cell(row, 4),
			SalePrice:     cell(row, 5),
			Image:         cell(row, 6),
			Material:      cell(row, 7),
		})
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func readImageFile(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", apperror.Field(apperror.KindValidation, "image", "product image is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", apperror.Field(apperror.KindValidation, "image", "failed to read image upload")
	}
	return data, header.Filename, nil
}

func formValuePtr(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func parseIntField(value, field string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperror.Field(apperror.KindValidation, field, field+" must be an integer")
	}
	return n, nil
}

func parseFloatField(value, field string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, apperror.Field(apperror.KindValidation, field, field+" must be a number")
	}
	return f, nil
}
