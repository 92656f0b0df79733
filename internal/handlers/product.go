package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/services"
	"github.com/example/snbstore/internal/utils"
)

// ProductHandler manages the public catalog and admin product CRUD.
type ProductHandler struct {
	db       *gorm.DB
	products *services.ProductService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db, products: services.NewProductService(db)}
}

// ListProducts returns paginated products with optional filters. A search
// term switches to ranked search.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pg := utils.ParsePagination(c)
		results, err := h.products.Search(c.Context(), search, pg.Limit)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": results})
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{}).Where("is_deleted = ?", false)

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", strings.ToLower(category))
	}

	if brand := c.Query("brand"); brand != "" {
		query = query.Where("brand = ?", brand)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if minPrice := c.Query("min_price"); minPrice != "" {
		if val, err := strconv.ParseFloat(minPrice, 64); err == nil {
			query = query.Where("price >= ?", val)
		}
	}

	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if val, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("price <= ?", val)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Variants").Preload("Images").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetProduct loads a product with variants and images, including the derived
// read-only fields.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	product, err := h.products.Get(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
		"derived": fiber.Map{
			"is_on_sale":          product.IsOnSale(),
			"discount_percentage": product.DiscountPercentage(),
			"total_variant_stock": product.TotalVariantStock(),
		},
	})
}

type productVariantRequest struct {
	Size       string  `json:"size"`
	ColorName  string  `json:"color_name"`
	ColorValue string  `json:"color_value"`
	Stock      int     `json:"stock"`
	Price      float64 `json:"price"`
}

type productImageRequest struct {
	URL          string `json:"url"`
	Alt          string `json:"alt"`
	DisplayOrder int    `json:"display_order"`
}

type productRequest struct {
	Name         string                  `json:"name"`
	Brand        string                  `json:"brand"`
	Category     string                  `json:"category"`
	Description  string                  `json:"description"`
	Price        float64                 `json:"price"`
	ComparePrice float64                 `json:"compare_price"`
	Stock        int                     `json:"stock"`
	Status       string                  `json:"status"`
	SKU          string                  `json:"sku"`
	Barcode      string                  `json:"barcode"`
	Image        string                  `json:"image"`
	Weight       float64                 `json:"weight"`
	Tags         []string                `json:"tags"`
	SEOTitle     string                  `json:"seo_title"`
	Variants     []productVariantRequest `json:"variants"`
	Images       []productImageRequest   `json:"images"`
}

func (r productRequest) toModel() models.Product {
	product := models.Product{
		Name:         r.Name,
		Brand:        r.Brand,
		Category:     r.Category,
		Description:  r.Description,
		Price:        r.Price,
		ComparePrice: r.ComparePrice,
		Stock:        r.Stock,
		Status:       r.Status,
		SKU:          r.SKU,
		Barcode:      r.Barcode,
		Image:        r.Image,
		Weight:       r.Weight,
		Tags:         pq.StringArray(r.Tags),
		SEOTitle:     r.SEOTitle,
	}

	for _, v := range r.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:       v.Size,
			ColorName:  v.ColorName,
			ColorValue: v.ColorValue,
			Stock:      v.Stock,
			Price:      v.Price,
		})
	}
	for _, img := range r.Images {
		product.Images = append(product.Images, models.ProductImage{
			URL:          img.URL,
			Alt:          img.Alt,
			DisplayOrder: img.DisplayOrder,
		})
	}

	return product
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product := req.toModel()
	if err := h.products.Create(c.Context(), &product); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct updates an existing product, replacing variants and images.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product := req.toModel()
	product.ID = id
	if err := h.products.Update(c.Context(), &product); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct soft-deletes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.products.SoftDelete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "product deleted"})
}

// RestoreProduct clears the deleted flag.
func (h *ProductHandler) RestoreProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.products.Restore(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "product restored"})
}
