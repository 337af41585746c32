package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

type InvoiceController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewInvoiceController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *InvoiceController {
	return &InvoiceController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

var errInvoiceRequired = errors.New("client_id, invoice_number and amount are required")

type invoiceInput struct {
	ClientID      *uint      `json:"client_id" validate:"omitempty,gt=0"`
	InvoiceNumber *string    `json:"invoice_number" validate:"omitempty,min=1,max=100"`
	Amount        *float64   `json:"amount" validate:"omitempty,gte=0"`
	SentDate      *time.Time `json:"sent_date"`
	DueDate       *time.Time `json:"due_date"`
	Status        *string    `json:"status" validate:"omitempty,invoice_status"`
	Opportunity   *string    `json:"opportunity"`
	Notes         *string    `json:"notes"`
}

func (in invoiceInput) apply(inv *models.Invoice, now time.Time) {
	if in.ClientID != nil {
		inv.ClientID = *in.ClientID
	}
	if in.InvoiceNumber != nil {
		inv.InvoiceNumber = strings.TrimSpace(*in.InvoiceNumber)
	}
	if in.Amount != nil {
		inv.Amount = *in.Amount
	}
	if in.SentDate != nil {
		inv.SentDate = in.SentDate
	}
	if in.DueDate != nil {
		inv.DueDate = in.DueDate
	}
	if in.Status != nil {
		inv.Status = models.InvoiceStatus(*in.Status)
		if inv.Status == models.InvoicePaid && inv.PaidAt == nil {
			inv.PaidAt = &now
		}
		if inv.Status != models.InvoicePaid {
			inv.PaidAt = nil
		}
	}
	if in.Opportunity != nil {
		inv.Opportunity = *in.Opportunity
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
}

// saveError maps a write error, turning a duplicate invoice number into 409.
func (ic *InvoiceController) saveError(c *fiber.Ctx, err error, op string, inv *models.Invoice) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invoice number already exists", nil)
	}
	utils.LogError("invoice_"+op, err, map[string]interface{}{"invoice_number": inv.InvoiceNumber})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to "+op+" invoice", err)
}

func (ic *InvoiceController) clientExists(id uint) (bool, error) {
	var count int64
	if err := ic.DB.Model(&models.Client{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateInvoice records a new invoice against an existing client
func (ic *InvoiceController) CreateInvoice(c *fiber.Ctx) error {
	var input invoiceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.ClientID == nil || input.InvoiceNumber == nil || strings.TrimSpace(*input.InvoiceNumber) == "" || input.Amount == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errInvoiceRequired)
	}

	exists, err := ic.clientExists(*input.ClientID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch client", err)
	}
	if !exists {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Client not found", nil)
	}

	now := time.Now()
	invoice := models.Invoice{Status: models.InvoicePending, SentDate: &now}
	input.apply(&invoice, now)

	if err := ic.DB.Create(&invoice).Error; err != nil {
		return ic.saveError(c, err, "create", &invoice)
	}

	invoice.DaysOverdue = utils.DaysOverdue(invoice, utils.AgingFromSentDate, now)
	publish(ic.Events, EntityInvoice, ActionCreated, invoice.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(invoice))
}

// GetInvoices returns paginated invoices filtered by status and client
func (ic *InvoiceController) GetInvoices(c *fiber.Ctx) error {
	page, limit, offset := utils.Pagination(c)

	query := ic.DB.Model(&models.Invoice{})
	if status := c.Query("status"); status != "" {
		if !models.InvoiceStatus(status).Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status", nil)
		}
		query = query.Where("status = ?", status)
	}
	if raw := c.Query("client_id"); raw != "" {
		clientID := c.QueryInt("client_id", 0)
		if clientID <= 0 {
			return invalidID(c, "client")
		}
		query = query.Where("client_id = ?", clientID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count invoices", err)
	}

	var invoices []models.Invoice
	if err := query.Preload("Client").Order("sent_date DESC").Offset(offset).Limit(limit).Find(&invoices).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invoices", err)
	}

	now := time.Now()
	for i := range invoices {
		invoices[i].DaysOverdue = utils.DaysOverdue(invoices[i], utils.AgingFromSentDate, now)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  invoices,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetAging buckets outstanding invoices by days overdue
func (ic *InvoiceController) GetAging(c *fiber.Ctx) error {
	opts := utils.AgingOptions{
		Now:         time.Now(),
		ExcludePaid: c.QueryBool("exclude_paid", true),
		Basis:       utils.AgingFromSentDate,
	}
	switch basis := utils.AgingBasis(c.Query("basis")); basis {
	case "":
	case utils.AgingFromSentDate, utils.AgingFromDueDate:
		opts.Basis = basis
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "basis must be sent or due", nil)
	}
	if raw := c.Query("now"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid now date", err)
		}
		opts.Now = t
	}

	var invoices []models.Invoice
	if err := ic.DB.Find(&invoices).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invoices", err)
	}

	return c.JSON(utils.SuccessResponse(utils.BucketInvoices(invoices, opts)))
}

// GetInvoice returns an invoice with its client and email history
func (ic *InvoiceController) GetInvoice(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "invoice")
	}

	var invoice models.Invoice
	if err := ic.DB.Preload("Client").Preload("Emails", func(db *gorm.DB) *gorm.DB {
		return db.Order("occurred_at DESC")
	}).First(&invoice, id).Error; err != nil {
		return fetchError(c, err, "Invoice")
	}

	invoice.DaysOverdue = utils.DaysOverdue(invoice, utils.AgingFromSentDate, time.Now())
	return c.JSON(utils.SuccessResponse(invoice))
}

// UpdateInvoice applies a partial update. Marking an invoice paid stamps paid_at.
func (ic *InvoiceController) UpdateInvoice(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "invoice")
	}

	var input invoiceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var invoice models.Invoice
	if err := ic.DB.First(&invoice, id).Error; err != nil {
		return fetchError(c, err, "Invoice")
	}

	if input.ClientID != nil && *input.ClientID != invoice.ClientID {
		exists, err := ic.clientExists(*input.ClientID)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch client", err)
		}
		if !exists {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Client not found", nil)
		}
	}

	now := time.Now()
	input.apply(&invoice, now)
	if invoice.InvoiceNumber == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errInvoiceRequired)
	}

	if err := ic.DB.Omit("Client").Save(&invoice).Error; err != nil {
		return ic.saveError(c, err, "update", &invoice)
	}

	invoice.DaysOverdue = utils.DaysOverdue(invoice, utils.AgingFromSentDate, now)
	publish(ic.Events, EntityInvoice, ActionUpdated, invoice.ID)
	return c.JSON(utils.SuccessResponse(invoice))
}

// DeleteInvoice hard-deletes an invoice so its number can be reused
func (ic *InvoiceController) DeleteInvoice(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "invoice")
	}

	var invoice models.Invoice
	if err := ic.DB.First(&invoice, id).Error; err != nil {
		return fetchError(c, err, "Invoice")
	}

	err := ic.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("invoice_id = ?", id).Delete(&models.EmailHistory{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&invoice).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete invoice", err)
	}

	publish(ic.Events, EntityInvoice, ActionDeleted, invoice.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Invoice deleted successfully"}))
}

// ClearInvoices removes every invoice. Used to reset test data.
func (ic *InvoiceController) ClearInvoices(c *fiber.Ctx) error {
	var deleted int64
	err := ic.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.EmailHistory{}).Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Invoice{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		utils.LogError("invoice_bulk_clear", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear invoices", err)
	}

	ic.Logger.WithField("deleted", deleted).Warn("Cleared all invoices")
	publish(ic.Events, EntityInvoice, ActionCleared, 0)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": deleted}))
}
