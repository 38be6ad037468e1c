package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karobarhq/karobar/app/controllers"
	"github.com/karobarhq/karobar/internal/pkg/middleware"
	"github.com/karobarhq/karobar/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply tenant context middleware globally as first middleware
	app.Use(middleware.TenantContextMiddleware(controllers.BillingService()))

	h.registerPublicRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Auth
	app.Post("/register", controllers.HandleAuthRegister)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Public plan catalogue
	app.Get("/pricing", controllers.HandleGetPricing)

	// Billing landing page for provider redirects
	app.Get("/billing", middleware.RequireAuth, controllers.HandleBillingStatus)

	// Payment provider return URLs (browser redirects, no CSRF; the
	// controller verifies against the provider before trusting anything)
	app.Get("/billing/esewa/success", controllers.HandleEsewaSuccess)
	app.Get("/billing/esewa/failure", controllers.HandleEsewaFailure)
	app.Post("/billing/khalti/callback", controllers.HandleKhaltiCallback)
}
