package domain

import "strings"

// Product represents a catalog record persisted in the products file.
// The id is a generated code {TypeInitial}{BrandInitial}{0001..} unique
// across the catalog; Version advances by one on every successful update.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Brand         string  `json:"brand"`
	Type          string  `json:"type"`
	Material      string  `json:"material"`
	Stock         int     `json:"stock"`
	OriginalPrice float64 `json:"originalPrice"`
	SalePrice     float64 `json:"salePrice"`
	ImageURL      string  `json:"imageUrl"`
	Version       int     `json:"version"`
}

// ProductKey is the (name, brand, material) triple; no two catalog records
// may share it, and cart items reference products by it.
type ProductKey struct {
	Name     string
	Brand    string
	Material string
}

// Key returns the uniqueness triple for the product.
func (p Product) Key() ProductKey {
	return ProductKey{Name: p.Name, Brand: p.Brand, Material: p.Material}
}

// Allowed attribute sets. Brand/type/material values are matched
// case-sensitively after trimming.
var (
	AllowedBrands    = []string{"Cartier", "Tiffany", "Pandora", "PNJ", "DOJI"}
	AllowedTypes     = []string{"Nhẫn", "Dây chuyền", "Lắc", "Bông tai", "Vòng"}
	AllowedMaterials = []string{"14K Gold", "18K Gold", "24K Gold", "Silver", "Platinum", "Diamond"}
)

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ValidBrand reports whether v is one of the allowed brands.
func ValidBrand(v string) bool { return contains(AllowedBrands, v) }

// ValidType reports whether v is one of the allowed product types.
func ValidType(v string) bool { return contains(AllowedTypes, v) }

// ValidMaterial reports whether v is one of the allowed materials.
func ValidMaterial(v string) bool { return contains(AllowedMaterials, v) }

// Initial returns the uppercased first rune of s, used to build product
// codes ("Nhẫn" -> "N", "Cartier" -> "C").
func Initial(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0]))
}
