package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/config"
	"github.com/example/ricestore/internal/handlers"
	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/services"
)

// Dependencies are the shared collaborators handed to every handler.
type Dependencies struct {
	DB        *gorm.DB
	Config    *config.Config
	Sessions  services.SessionStore
	Images    services.ImageStore
	Publisher services.EventPublisher
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	db, cfg := deps.DB, deps.Config
	policy := services.PolicyFromConfig(cfg)

	cartService := services.NewCartService(db, policy)
	orderService := services.NewOrderService(db, policy, deps.Publisher)
	ratingService := services.NewRatingService(db)
	reportService := services.NewReportService(db, orderService)

	authHandler := handlers.NewAuthHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	profileHandler := handlers.NewProfileHandler(db, deps.Images)
	paymentHandler := handlers.NewPaymentMethodHandler(db)
	productHandler := handlers.NewProductHandler(db, deps.Images)
	adminHandler := handlers.NewAdminHandler(db, cfg, deps.Sessions, orderService, reportService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	// Auth routes
	auth := app.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)

	// Storefront
	app.Get("/products", catalogHandler.ListProducts)
	app.Get("/products/:id", catalogHandler.GetProduct)
	app.Get("/payment-methods", paymentHandler.ListActive)

	// Customer routes
	requireCustomer := middleware.AuthMiddleware(db, cfg)

	cart := app.Group("/cart", requireCustomer)
	cart.Post("/add", cartHandler.AddToCart)
	cart.Get("/", cartHandler.ListCart)
	cart.Get("/summary", cartHandler.Summary)
	cart.Patch("/:id", cartHandler.UpdateQuantity)
	cart.Delete("/:id", cartHandler.RemoveLine)

	orders := app.Group("/orders", requireCustomer)
	orders.Post("/checkout", orderHandler.Checkout)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	app.Get("/payment/:orderId", requireCustomer, orderHandler.PaymentInstructions)

	app.Post("/ratings", requireCustomer, ratingHandler.Submit)

	profile := app.Group("/profile", requireCustomer)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)
	profile.Post("/photo", profileHandler.UploadPhoto)

	address := app.Group("/address", requireCustomer)
	address.Get("/", profileHandler.ListAddresses)
	address.Post("/", profileHandler.CreateAddress)
	address.Patch("/:id", profileHandler.UpdateAddress)
	address.Delete("/:id", profileHandler.DeleteAddress)

	// Back-office
	app.Post("/admin/login", adminHandler.Login)

	admin := app.Group("/admin", middleware.AdminAuth(deps.Sessions))
	admin.Post("/logout", adminHandler.Logout)
	admin.Post("/update-profile", adminHandler.UpdateProfile)

	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/inventory", adminHandler.Inventory)
	admin.Get("/reports/orders.pdf", adminHandler.OrdersPDF)

	admin.Get("/orders", adminHandler.ListOrders)
	admin.Post("/order/approve/:id", adminHandler.ApproveOrder)
	admin.Post("/order/out-for-delivery/:id", adminHandler.OutForDelivery)
	admin.Post("/order/delivered/:id", adminHandler.MarkDelivered)
	admin.Post("/order/reject/:id", adminHandler.RejectOrder)
	admin.Post("/order/update-delivery/:id", adminHandler.UpdateDelivery)

	admin.Get("/products", productHandler.ListProducts)
	admin.Post("/add-product", productHandler.AddProduct)
	admin.Post("/product/edit/:id", productHandler.EditProduct)
	admin.Get("/product/:id/variants", productHandler.ListVariants)
	admin.Post("/product/edit-variants/:id", productHandler.EditVariants)
	admin.Post("/product/delete/:id", productHandler.DeleteProduct)

	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/users/edit/:id", adminHandler.EditUser)
	admin.Delete("/users/delete/:id", adminHandler.DeleteUser)

	payments := admin.Group("/payment-methods")
	payments.Get("/", paymentHandler.List)
	payments.Post("/", paymentHandler.Create)
	payments.Put("/:id", paymentHandler.Update)
	payments.Delete("/:id", paymentHandler.Delete)
}
