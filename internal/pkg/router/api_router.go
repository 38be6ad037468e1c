package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/karobarhq/karobar/app/controllers"
	"github.com/karobarhq/karobar/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1",
		middleware.RequireAPISessionAuth,
		middleware.APIQuotaMiddleware(controllers.QuotaService()),
	)

	// Account
	v1.Get("/account", controllers.HandleGetAccount)
	v1.Get("/organizations", controllers.HandleListOrganizations)
	v1.Post("/organizations/switch", controllers.HandleSwitchOrganization)

	// Team
	v1.Get("/team", controllers.HandleListTeam)
	v1.Post("/team", controllers.HandleAddTeamMember)
	v1.Delete("/team/:userID", controllers.HandleRemoveTeamMember)

	// CRM
	v1.Get("/leads", controllers.HandleListLeads)
	v1.Post("/leads", controllers.HandleCreateLead)
	v1.Patch("/leads/:id", controllers.HandleUpdateLead)
	v1.Delete("/leads/:id", controllers.HandleDeleteLead)

	v1.Get("/clients", controllers.HandleListClients)
	v1.Post("/clients", controllers.HandleCreateClient)
	v1.Patch("/clients/:id", controllers.HandleUpdateClient)
	v1.Delete("/clients/:id", controllers.HandleDeleteClient)

	// Invoices
	v1.Get("/invoices", controllers.HandleListInvoices)
	v1.Post("/invoices", controllers.HandleCreateInvoice)
	v1.Patch("/invoices/:id/status", controllers.HandleUpdateInvoiceStatus)
	v1.Delete("/invoices/:id", controllers.HandleDeleteInvoice)

	// Billing
	v1.Get("/billing/subscription", controllers.HandleGetSubscription)
	v1.Get("/billing/quota", controllers.HandleGetQuota)
	v1.Get("/billing/history", controllers.HandlePaymentHistory)
	v1.Post("/billing/upgrade", controllers.HandleUpgradePlan)
	v1.Post("/billing/verify", controllers.HandleVerifyPayment)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
