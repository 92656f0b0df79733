package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/config"
	"github.com/example/snbstore/internal/handlers"
	"github.com/example/snbstore/internal/middleware"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	resetHandler := handlers.NewPasswordResetHandler(db, cfg)
	productHandler := handlers.NewProductHandler(db)
	orderHandler := handlers.NewOrderHandler(db)
	profileHandler := handlers.NewProfileHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/forgot-password", resetHandler.ForgotPassword)
	auth.Post("/verify-reset-code", resetHandler.VerifyResetCode)
	auth.Post("/reset-password", resetHandler.ResetPassword)

	// Public catalog
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Authenticated routes
	protected := api.Group("", middleware.AuthMiddleware(cfg, db))

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Post("/orders/:id/cancel", orderHandler.CancelOrder)
	protected.Post("/orders/:id/return", orderHandler.ReturnOrder)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Put("/profile/password", profileHandler.ChangePassword)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)
	protected.Get("/profile/wishlist", profileHandler.GetWishlist)
	protected.Post("/profile/wishlist", profileHandler.AddWishlistItem)
	protected.Delete("/profile/wishlist/:productId", profileHandler.RemoveWishlistItem)

	// Admin console
	admin := protected.Group("/admin", middleware.RequireAdmin())
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/recent", adminHandler.RecentOrders)
	admin.Put("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Post("/orders/:id/payment", adminHandler.MarkOrderPaid)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)
	admin.Post("/products/:id/restore", productHandler.RestoreProduct)
}
