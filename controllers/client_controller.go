package controller

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

type ClientController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewClientController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *ClientController {
	return &ClientController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

type clientInput struct {
	Name             *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Email            *string    `json:"email" validate:"omitempty,email"`
	Company          *string    `json:"company" validate:"omitempty,max=200"`
	SubscriptionType *string    `json:"subscription_type" validate:"omitempty,max=100"`
	RenewalDate      *time.Time `json:"renewal_date"`
	EngagementRate   *float64   `json:"engagement_rate" validate:"omitempty,gte=0,lte=100"`
	ClickRate        *float64   `json:"click_rate" validate:"omitempty,gte=0,lte=100"`
	InterestTags     *[]string  `json:"interest_tags"`
	RiskLevel        *string    `json:"risk_level" validate:"omitempty,risk_level"`
	Notes            *string    `json:"notes"`
}

func (in clientInput) apply(client *models.Client) {
	if in.Name != nil {
		client.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		client.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Company != nil {
		client.Company = *in.Company
	}
	if in.SubscriptionType != nil {
		client.SubscriptionType = *in.SubscriptionType
	}
	if in.RenewalDate != nil {
		client.RenewalDate = in.RenewalDate
	}
	if in.EngagementRate != nil {
		client.EngagementRate = *in.EngagementRate
	}
	if in.ClickRate != nil {
		client.ClickRate = *in.ClickRate
	}
	if in.InterestTags != nil {
		client.InterestTags = *in.InterestTags
	}
	if in.RiskLevel != nil {
		client.RiskLevel = models.RiskLevel(*in.RiskLevel)
	}
	if in.Notes != nil {
		client.Notes = *in.Notes
	}
}

// CreateClient adds a client manually
func (cc *ClientController) CreateClient(c *fiber.Ctx) error {
	var input clientInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errNameRequired)
	}

	client := models.Client{RiskLevel: models.RiskMedium, InterestTags: []string{}}
	input.apply(&client)

	if err := cc.DB.Create(&client).Error; err != nil {
		utils.LogError("client_create", err, map[string]interface{}{"name": client.Name})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create client", err)
	}

	publish(cc.Events, EntityClient, ActionCreated, client.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(client))
}

// GetClients returns paginated clients filtered by search and risk level
func (cc *ClientController) GetClients(c *fiber.Ctx) error {
	page, limit, offset := utils.Pagination(c)

	query := cc.DB.Model(&models.Client{})
	if search := c.Query("search"); search != "" {
		query = likeAny(query, likePattern(search), "name", "email", "company")
	}
	if risk := c.Query("risk_level"); risk != "" {
		if !models.RiskLevel(risk).Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid risk level", nil)
		}
		query = query.Where("risk_level = ?", risk)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count clients", err)
	}

	var clients []models.Client
	if err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&clients).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch clients", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  clients,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetClient returns a client with its invoices
func (cc *ClientController) GetClient(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "client")
	}

	var client models.Client
	if err := cc.DB.Preload("Invoices", func(db *gorm.DB) *gorm.DB {
		return db.Order("sent_date DESC")
	}).First(&client, id).Error; err != nil {
		return fetchError(c, err, "Client")
	}

	now := time.Now()
	for i := range client.Invoices {
		client.Invoices[i].DaysOverdue = utils.DaysOverdue(client.Invoices[i], utils.AgingFromSentDate, now)
	}

	return c.JSON(utils.SuccessResponse(client))
}

// UpdateClient applies a partial update
func (cc *ClientController) UpdateClient(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "client")
	}

	var input clientInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var client models.Client
	if err := cc.DB.First(&client, id).Error; err != nil {
		return fetchError(c, err, "Client")
	}

	input.apply(&client)
	if client.Name == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errNameRequired)
	}

	if err := cc.DB.Save(&client).Error; err != nil {
		utils.LogError("client_update", err, map[string]interface{}{"client_id": id})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update client", err)
	}

	publish(cc.Events, EntityClient, ActionUpdated, client.ID)
	return c.JSON(utils.SuccessResponse(client))
}

// DeleteClient removes a client. Clients with invoices cannot be deleted.
func (cc *ClientController) DeleteClient(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "client")
	}

	var client models.Client
	if err := cc.DB.First(&client, id).Error; err != nil {
		return fetchError(c, err, "Client")
	}

	var invoices int64
	if err := cc.DB.Model(&models.Invoice{}).Where("client_id = ?", id).Count(&invoices).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check invoices", err)
	}
	if invoices > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Client has invoices; delete them first", nil)
	}

	if err := cc.DB.Delete(&client).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete client", err)
	}

	publish(cc.Events, EntityClient, ActionDeleted, client.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Client deleted successfully"}))
}

// ClearClients removes every client and their invoices. Used to reset test data.
func (cc *ClientController) ClearClients(c *fiber.Ctx) error {
	var deleted int64
	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.EmailHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Invoice{}).Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Client{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		utils.LogError("client_bulk_clear", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear clients", err)
	}

	cc.Logger.WithField("deleted", deleted).Warn("Cleared all clients")
	publish(cc.Events, EntityClient, ActionCleared, 0)
	publish(cc.Events, EntityInvoice, ActionCleared, 0)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": deleted}))
}
