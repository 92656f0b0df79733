package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/database"
	"github.com/example/snbstore/internal/models"
)

// ProductService keeps product stock and status consistent with
// variant-level inventory. All mutations go through it; raw field overwrites
// would bypass the invariants.
type ProductService struct {
	db *gorm.DB
}

// NewProductService constructs a ProductService.
func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// NormalizeProduct applies the pre-persist rules: once variants exist the
// top-level stock is the sum of variant stocks, and stock drives the
// active/out-of-stock transition. Manual statuses (inactive, discontinued)
// are never touched.
func NormalizeProduct(p *models.Product) {
	if len(p.Variants) > 0 {
		p.Stock = p.TotalVariantStock()
	}

	if p.Stock == 0 && p.Status == models.ProductStatusActive {
		p.Status = models.ProductStatusOutOfStock
	} else if p.Stock > 0 && p.Status == models.ProductStatusOutOfStock {
		p.Status = models.ProductStatusActive
	}
}

func validateProduct(p *models.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return database.Validation("name", "product name is required")
	case len(p.Name) > 200:
		return database.Validation("name", "product name cannot exceed 200 characters")
	case strings.TrimSpace(p.Brand) == "":
		return database.Validation("brand", "brand is required")
	case len(p.Description) > 2000:
		return database.Validation("description", "description cannot exceed 2000 characters")
	case strings.TrimSpace(p.SKU) == "":
		return database.Validation("sku", "sku is required")
	case strings.TrimSpace(p.Barcode) == "":
		return database.Validation("barcode", "barcode is required")
	case p.Price < 0:
		return database.Validation("price", "price cannot be negative")
	case p.ComparePrice < 0:
		return database.Validation("compare_price", "compare price cannot be negative")
	case p.ComparePrice > 0 && p.ComparePrice < p.Price:
		return database.Validation("compare_price", "compare price must be greater than or equal to price")
	case p.Stock < 0:
		return database.Validation("stock", "stock cannot be negative")
	case p.Weight < 0:
		return database.Validation("weight", "weight cannot be negative")
	}

	if p.Category != models.CategorySneakers && p.Category != models.CategoryBags {
		return database.Validation("category", "category must be sneakers or bags")
	}

	for _, v := range p.Variants {
		if v.Stock < 0 {
			return database.Validation("variants.stock", "variant stock cannot be negative")
		}
		if v.Price < 0 {
			return database.Validation("variants.price", "variant price cannot be negative")
		}
	}

	return nil
}

// Create validates, normalizes, and persists a new product.
func (s *ProductService) Create(ctx context.Context, p *models.Product) error {
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Category = strings.ToLower(p.Category)
	if p.Status == "" {
		p.Status = models.ProductStatusActive
	}

	if err := validateProduct(p); err != nil {
		return err
	}
	NormalizeProduct(p)

	err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Create(p).Error
	})
	if err != nil {
		return translateProductConflict(err)
	}
	return nil
}

// Update replaces the mutable fields, variants, and images of a product and
// re-applies normalization.
func (s *ProductService) Update(ctx context.Context, p *models.Product) error {
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Category = strings.ToLower(p.Category)

	if err := validateProduct(p); err != nil {
		return err
	}

	err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.Product
			if err := tx.First(&existing, "id = ? AND is_deleted = ?", p.ID, false).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return database.ErrProductNotFound
				}
				return err
			}

			// Variants and images are replaced wholesale on update.
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.ProductVariant{}).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.ProductImage{}).Error; err != nil {
				return err
			}

			for i := range p.Variants {
				p.Variants[i].ProductID = p.ID
			}
			for i := range p.Images {
				p.Images[i].ProductID = p.ID
			}

			NormalizeProduct(p)

			p.CreatedAt = existing.CreatedAt
			p.IsDeleted = existing.IsDeleted
			if err := tx.Model(&existing).
				Select("Name", "Brand", "Category", "Description", "Price", "ComparePrice",
					"Stock", "Status", "SKU", "Barcode", "Image", "Weight", "Tags", "SEOTitle").
				Updates(p).Error; err != nil {
				return err
			}

			if len(p.Variants) > 0 {
				if err := tx.Create(&p.Variants).Error; err != nil {
					return err
				}
			}
			if len(p.Images) > 0 {
				if err := tx.Create(&p.Images).Error; err != nil {
					return err
				}
			}

			return nil
		})
	})
	if err != nil {
		return translateProductConflict(err)
	}
	return nil
}

// Get loads a non-deleted product with variants and images.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Variants").
		Preload("Images").
		First(&product, "id = ? AND is_deleted = ?", id, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// SoftDelete flags the product deleted and forces status to discontinued.
func (s *ProductService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		result := s.db.WithContext(ctx).Model(&models.Product{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"status":     models.ProductStatusDiscontinued,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return database.ErrProductNotFound
		}
		return nil
	})
}

// Restore clears the deleted flag; the product becomes active again only if
// it has stock.
func (s *ProductService) Restore(ctx context.Context, id uuid.UUID) error {
	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var product models.Product
			if err := tx.First(&product, "id = ? AND is_deleted = ?", id, true).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return database.ErrProductNotFound
				}
				return err
			}

			updates := map[string]interface{}{"is_deleted": false}
			if product.Stock > 0 {
				updates["status"] = models.ProductStatusActive
			}
			return tx.Model(&product).Updates(updates).Error
		})
	})
}

// SearchResult pairs a product with its relevance score.
type SearchResult struct {
	models.Product
	Relevance int `json:"relevance"`
}

// Search matches the term against name, brand, and description, ranked by a
// weighted relevance score (name > brand > description). Soft-deleted
// products are excluded.
func (s *ProductService) Search(ctx context.Context, term string, limit int) ([]SearchResult, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, database.Validation("search", "search term is required")
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + term + "%"

	var results []SearchResult
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Select(`*,
			(CASE WHEN lower(name) LIKE ? THEN 4 ELSE 0 END) +
			(CASE WHEN lower(brand) LIKE ? THEN 2 ELSE 0 END) +
			(CASE WHEN lower(description) LIKE ? THEN 1 ELSE 0 END) AS relevance`,
			pattern, pattern, pattern).
		Where("is_deleted = ?", false).
		Where("lower(name) LIKE ? OR lower(brand) LIKE ? OR lower(description) LIKE ?",
			pattern, pattern, pattern).
		Order("relevance DESC, name ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// LowStock lists active, non-deleted products with 0 < stock < threshold.
func (s *ProductService) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	if threshold <= 0 {
		threshold = 5
	}

	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("stock > 0 AND stock < ?", threshold).
		Where("status = ? AND is_deleted = ?", models.ProductStatusActive, false).
		Order("stock ASC").
		Find(&products).Error
	return products, err
}

func translateProductConflict(err error) error {
	switch {
	case err == nil:
		return nil
	case database.UniqueViolationOn(err, "sku"):
		return &database.ConflictError{Field: "sku", Err: err}
	case database.UniqueViolationOn(err, "barcode"):
		return &database.ConflictError{Field: "barcode", Err: err}
	case database.IsUniqueViolation(err):
		return &database.ConflictError{Field: "product", Err: err}
	default:
		return err
	}
}
