package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/metrics"
	"github.com/karobarhq/karobar/internal/pkg/quota"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

func HandleListInvoices(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	var invoices []models.Invoice
	if err := db.Where("organization_id = ?", tc.OrgID).Order("created_at DESC").Find(&invoices).Error; err != nil {
		return jsonInternalError(c, "Failed to load invoices")
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

// HandleCreateInvoice creates an invoice against a client of the same
// organization. Any authenticated member may issue invoices; the only
// gate is the "invoices" quota.
func HandleCreateInvoice(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	var req struct {
		ClientID    uint   `json:"client_id"`
		Number      string `json:"number"`
		TotalAmount int    `json:"total_amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if req.Number == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "number is required")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	// The referenced client must belong to the same tenant.
	var client models.Client
	if err := db.Where("organization_id = ?", tc.OrgID).First(&client, req.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Client not found")
		}
		return jsonInternalError(c, "Failed to load client")
	}

	invoice := models.Invoice{
		OrganizationID: tc.OrgID,
		ClientID:       client.ID,
		Number:         req.Number,
		Status:         models.InvoiceStatusDraft,
		TotalAmount:    req.TotalAmount,
	}

	// Created row and counter move commit together; a refused quota rolls
	// the invoice back.
	org := &models.Organization{ID: tc.OrgID, Plan: tc.Plan}
	ok, reason, err := QuotaService().Consume(org, models.FeatureInvoices, func(r quota.Repository) error {
		return r.CreateRecord(&invoice)
	})
	if err != nil {
		return jsonInternalError(c, "Failed to create invoice")
	}
	if !ok {
		metrics.QuotaDenials.WithLabelValues(models.FeatureInvoices).Inc()
		return jsonError(c, fiber.StatusPaymentRequired, "quota_exceeded", reason)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// HandleUpdateInvoiceStatus moves an invoice between DRAFT, SENT and PAID.
func HandleUpdateInvoiceStatus(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	switch req.Status {
	case models.InvoiceStatusDraft, models.InvoiceStatusSent, models.InvoiceStatusPaid:
	default:
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid status")
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	invoice, err := findInvoice(db, tc.OrgID, c)
	if err != nil {
		return err
	}

	invoice.Status = req.Status
	if req.Status == models.InvoiceStatusSent && invoice.IssuedAt == nil {
		now := time.Now()
		invoice.IssuedAt = &now
	}
	if err := db.Save(invoice).Error; err != nil {
		return jsonInternalError(c, "Failed to update invoice")
	}
	return c.JSON(invoice)
}

func HandleDeleteInvoice(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMDelete); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	invoice, err := findInvoice(db, tc.OrgID, c)
	if err != nil {
		return err
	}
	if err := db.Delete(invoice).Error; err != nil {
		return jsonInternalError(c, "Failed to delete invoice")
	}
	return c.JSON(fiber.Map{"message": "invoice deleted"})
}

func findInvoice(db *gorm.DB, orgID uint, c *fiber.Ctx) (*models.Invoice, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid invoice id")
	}
	var invoice models.Invoice
	err = db.Where("organization_id = ?", orgID).First(&invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "Invoice not found")
		}
		return nil, jsonInternalError(c, "Failed to load invoice")
	}
	return &invoice, nil
}
