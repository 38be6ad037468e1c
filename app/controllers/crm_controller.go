package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/metrics"
	"github.com/karobarhq/karobar/internal/pkg/quota"
	"github.com/karobarhq/karobar/internal/pkg/rbac"
	"github.com/karobarhq/karobar/internal/pkg/tenantcontext"
)

// Lead handlers. Leads are not quota-limited; only role checks apply.

func HandleListLeads(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMRead); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	var leads []models.Lead
	if err := db.Where("organization_id = ?", tc.OrgID).Order("created_at DESC").Find(&leads).Error; err != nil {
		return jsonInternalError(c, "Failed to load leads")
	}
	return c.JSON(fiber.Map{"leads": leads})
}

func HandleCreateLead(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMCreate); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	var lead models.Lead
	if err := c.BodyParser(&lead); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	lead.ID = 0
	lead.OrganizationID = tc.OrgID
	lead.CreatedByID = tc.UserID
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}
	if err := db.Create(&lead).Error; err != nil {
		return jsonInternalError(c, "Failed to create lead")
	}
	return c.Status(fiber.StatusCreated).JSON(lead)
}

func HandleUpdateLead(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMUpdate); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	lead, err := findLead(db, tc.OrgID, c)
	if err != nil {
		return err
	}

	var patch struct {
		Name   *string `json:"name"`
		Email  *string `json:"email"`
		Phone  *string `json:"phone"`
		Status *string `json:"status"`
		Notes  *string `json:"notes"`
	}
	if err := c.BodyParser(&patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if patch.Name != nil {
		lead.Name = *patch.Name
	}
	if patch.Email != nil {
		lead.Email = *patch.Email
	}
	if patch.Phone != nil {
		lead.Phone = *patch.Phone
	}
	if patch.Status != nil {
		lead.Status = *patch.Status
	}
	if patch.Notes != nil {
		lead.Notes = *patch.Notes
	}

	if err := db.Save(lead).Error; err != nil {
		return jsonInternalError(c, "Failed to update lead")
	}
	return c.JSON(lead)
}

func HandleDeleteLead(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMDelete); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	lead, err := findLead(db, tc.OrgID, c)
	if err != nil {
		return err
	}
	if err := db.Delete(lead).Error; err != nil {
		return jsonInternalError(c, "Failed to delete lead")
	}
	return c.JSON(fiber.Map{"message": "lead deleted"})
}

// Client handlers. Creating a client consumes the "customers" quota.

func HandleListClients(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMRead); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	var clients []models.Client
	if err := db.Where("organization_id = ?", tc.OrgID).Order("created_at DESC").Find(&clients).Error; err != nil {
		return jsonInternalError(c, "Failed to load clients")
	}
	return c.JSON(fiber.Map{"clients": clients})
}

func HandleCreateClient(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMCreate); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	var client models.Client
	if err := c.BodyParser(&client); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	client.ID = 0
	client.OrganizationID = tc.OrgID

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	org := &models.Organization{ID: tc.OrgID, Plan: tc.Plan}
	ok, reason, err := QuotaService().Consume(org, models.FeatureCustomers, func(r quota.Repository) error {
		return r.CreateRecord(&client)
	})
	if err != nil {
		return jsonInternalError(c, "Failed to create client")
	}
	if !ok {
		metrics.QuotaDenials.WithLabelValues(models.FeatureCustomers).Inc()
		return jsonError(c, fiber.StatusPaymentRequired, "quota_exceeded", reason)
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func HandleUpdateClient(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMUpdate); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	client, err := findClient(db, tc.OrgID, c)
	if err != nil {
		return err
	}

	var patch struct {
		Name      *string `json:"name"`
		Email     *string `json:"email"`
		Phone     *string `json:"phone"`
		Address   *string `json:"address"`
		PANNumber *string `json:"pan_number"`
	}
	if err := c.BodyParser(&patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if patch.Name != nil {
		client.Name = *patch.Name
	}
	if patch.Email != nil {
		client.Email = *patch.Email
	}
	if patch.Phone != nil {
		client.Phone = *patch.Phone
	}
	if patch.Address != nil {
		client.Address = *patch.Address
	}
	if patch.PANNumber != nil {
		client.PANNumber = *patch.PANNumber
	}

	if err := db.Save(client).Error; err != nil {
		return jsonInternalError(c, "Failed to update client")
	}
	return c.JSON(client)
}

func HandleDeleteClient(c *fiber.Ctx) error {
	tc := tenantcontext.Get(c)
	if ok, reason := rbac.Allow(tc.Role, rbac.OpCRMDelete); !ok {
		return jsonError(c, fiber.StatusForbidden, "forbidden", reason)
	}

	db := database.GetDB()
	if db == nil {
		return jsonInternalError(c, "Database unavailable")
	}

	client, err := findClient(db, tc.OrgID, c)
	if err != nil {
		return err
	}
	if err := db.Delete(client).Error; err != nil {
		return jsonInternalError(c, "Failed to delete client")
	}
	return c.JSON(fiber.Map{"message": "client deleted"})
}

func findLead(db *gorm.DB, orgID uint, c *fiber.Ctx) (*models.Lead, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid lead id")
	}
	var lead models.Lead
	err = db.Where("organization_id = ?", orgID).First(&lead, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "Lead not found")
		}
		return nil, jsonInternalError(c, "Failed to load lead")
	}
	return &lead, nil
}

func findClient(db *gorm.DB, orgID uint, c *fiber.Ctx) (*models.Client, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid client id")
	}
	var client models.Client
	err = db.Where("organization_id = ?", orgID).First(&client, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "Client not found")
		}
		return nil, jsonInternalError(c, "Failed to load client")
	}
	return &client, nil
}
