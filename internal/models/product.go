package models

import (
	"math"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product statuses. Only active and out-of-stock participate in the
// stock-driven auto-transition; inactive and discontinued are manual.
const (
	ProductStatusActive       = "active"
	ProductStatusInactive     = "inactive"
	ProductStatusOutOfStock   = "out-of-stock"
	ProductStatusDiscontinued = "discontinued"
)

// Product categories.
const (
	CategorySneakers = "sneakers"
	CategoryBags     = "bags"
)

// Product is a catalog entry. Once variants exist, the top-level Stock column
// is a denormalized sum of variant stocks and is never hand-edited.
type Product struct {
	BaseModel
	Name         string           `json:"name"`
	Brand        string           `gorm:"index" json:"brand"`
	Category     string           `gorm:"index" json:"category"`
	Description  string           `json:"description"`
	Price        float64          `json:"price"`
	ComparePrice float64          `json:"compare_price,omitempty"`
	Stock        int              `json:"stock"`
	Status       string           `gorm:"index" json:"status"`
	SKU          string           `gorm:"uniqueIndex" json:"sku"`
	Barcode      string           `gorm:"uniqueIndex" json:"barcode"`
	Image        string           `json:"image"`
	Weight       float64          `json:"weight,omitempty"`
	Tags         pq.StringArray   `gorm:"type:text[]" json:"tags,omitempty"`
	SEOTitle     string           `json:"seo_title,omitempty"`
	IsDeleted    bool             `gorm:"index" json:"-"`
	Variants     []ProductVariant `json:"variants,omitempty"`
	Images       []ProductImage   `json:"images,omitempty"`
}

// TotalVariantStock sums stock across all variants.
func (p *Product) TotalVariantStock() int {
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// IsOnSale reports whether the compare-at price exceeds the current price.
func (p *Product) IsOnSale() bool {
	return p.ComparePrice > p.Price
}

// DiscountPercentage returns the sale discount rounded to the nearest
// integer, or 0 when the product is not on sale.
func (p *Product) DiscountPercentage() int {
	if !p.IsOnSale() || p.ComparePrice == 0 {
		return 0
	}
	return int(math.Round((p.ComparePrice - p.Price) / p.ComparePrice * 100))
}

// ProductVariant is a size/color combination with its own stock and price.
type ProductVariant struct {
	BaseModel
	ProductID  uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Size       string    `json:"size"`
	ColorName  string    `json:"color_name"`
	ColorValue string    `json:"color_value"` // hex, e.g. #1A2B3C
	Stock      int       `json:"stock"`
	Price      float64   `json:"price"`
}

// ProductImage is a gallery image attached to a product.
type ProductImage struct {
	BaseModel
	ProductID    uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	URL          string    `json:"url"`
	Alt          string    `json:"alt"`
	DisplayOrder int       `json:"display_order"`
}
