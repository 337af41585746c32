package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

// EmailController sends invoice reminders and lead emails and serves the
// email history of both.
type EmailController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Mailer utils.Mailer
	Events EventPublisher
}

func NewEmailController(db *gorm.DB, logger *logrus.Entry, mailer utils.Mailer, events EventPublisher) *EmailController {
	return &EmailController{
		DB:     db,
		Logger: logger,
		Mailer: mailer,
		Events: events,
	}
}

type reminderInput struct {
	To      string `json:"to" validate:"omitempty,email"`
	Subject string `json:"subject" validate:"max=300"`
	Body    string `json:"body"`
}

type leadEmailInput struct {
	Direction  string     `json:"direction" validate:"omitempty,oneof=sent received"`
	To         string     `json:"to" validate:"omitempty,email"`
	From       string     `json:"from"`
	Subject    string     `json:"subject" validate:"required,max=300"`
	Body       string     `json:"body" validate:"required"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func reminderBody(inv models.Invoice, clientName string) string {
	due := ""
	if inv.DueDate != nil {
		due = " due on " + inv.DueDate.Format("January 2, 2006")
	} else if inv.SentDate != nil {
		due = " sent on " + inv.SentDate.Format("January 2, 2006")
	}
	greeting := "Hello"
	if clientName != "" {
		greeting = "Dear " + clientName
	}
	return fmt.Sprintf("%s,\n\nThis is a friendly reminder that invoice **%s** for **$%.2f**%s is still outstanding.\n\n"+
		"Please let us know if you have any questions.\n\nThank you,", greeting, inv.InvoiceNumber, inv.Amount, due)
}

func (ec *EmailController) send(c *fiber.Ctx, msg utils.OutgoingEmail) (string, error) {
	if ec.Mailer == nil {
		return "", utils.ErrMailerNotConfigured
	}
	return ec.Mailer.Send(c.UserContext(), msg)
}

// deliveryError maps a mailer failure onto a response.
func deliveryError(c *fiber.Ctx, err error, msg utils.OutgoingEmail) error {
	if errors.Is(err, utils.ErrMailerNotConfigured) {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Email delivery is not configured", nil)
	}
	utils.LogError("email_send", err, map[string]interface{}{"to": msg.To, "subject": msg.Subject})
	return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to send email", err)
}

// SendInvoiceReminder emails the client about an outstanding invoice and logs it
func (ec *EmailController) SendInvoiceReminder(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "invoice")
	}

	var input reminderInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var invoice models.Invoice
	if err := ec.DB.Preload("Client").First(&invoice, id).Error; err != nil {
		return fetchError(c, err, "Invoice")
	}
	if invoice.Status.Settled() {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invoice is already settled", nil)
	}

	to := input.To
	clientName := ""
	if invoice.Client != nil {
		clientName = invoice.Client.Name
		if to == "" {
			to = invoice.Client.Email
		}
	}
	if to == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Client has no email address", nil)
	}

	subject := input.Subject
	if subject == "" {
		subject = "Payment reminder: invoice " + invoice.InvoiceNumber
	}
	body := input.Body
	if body == "" {
		body = reminderBody(invoice, clientName)
	}

	msg := utils.OutgoingEmail{To: []string{to}, Subject: subject, Markdown: body}
	messageID, err := ec.send(c, msg)
	if err != nil {
		return deliveryError(c, err, msg)
	}

	now := time.Now()
	entry := models.EmailHistory{
		InvoiceID: invoice.ID,
		EmailMessage: models.EmailMessage{
			Direction:  models.DirectionSent,
			From:       ec.Mailer.From(),
			To:         to,
			Subject:    subject,
			Body:       body,
			MessageID:  messageID,
			OccurredAt: now,
		},
	}
	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).Update("last_reminder_sent", now).Error
	})
	if err != nil {
		utils.LogError("invoice_reminder_log", err, map[string]interface{}{"invoice_id": invoice.ID, "message_id": messageID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Reminder sent but failed to record it", err)
	}

	ec.Logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"to":         to,
	}).Info("Invoice reminder sent")
	publish(ec.Events, EntityEmail, ActionCreated, entry.ID)
	publish(ec.Events, EntityInvoice, ActionUpdated, invoice.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(entry))
}

// GetInvoiceEmails returns the email history of an invoice, newest first
func (ec *EmailController) GetInvoiceEmails(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "invoice")
	}

	var invoice models.Invoice
	if err := ec.DB.Select("id").First(&invoice, id).Error; err != nil {
		return fetchError(c, err, "Invoice")
	}

	var emails []models.EmailHistory
	if err := ec.DB.Where("invoice_id = ?", id).Order("occurred_at DESC").Find(&emails).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch emails", err)
	}
	return c.JSON(utils.SuccessResponse(emails))
}

// GetLeadEmails returns the email history of a lead, newest first
func (ec *EmailController) GetLeadEmails(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "lead")
	}

	var lead models.Lead
	if err := ec.DB.Select("id").First(&lead, id).Error; err != nil {
		return fetchError(c, err, "Lead")
	}

	var emails []models.LeadEmailHistory
	if err := ec.DB.Where("lead_id = ?", id).Order("occurred_at DESC").Find(&emails).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch emails", err)
	}
	return c.JSON(utils.SuccessResponse(emails))
}

// CreateLeadEmail sends an email to a lead, or logs one received out of band
// when direction is "received".
func (ec *EmailController) CreateLeadEmail(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "lead")
	}

	var input leadEmailInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := ec.DB.First(&lead, id).Error; err != nil {
		return fetchError(c, err, "Lead")
	}

	now := time.Now()
	entry := models.LeadEmailHistory{
		LeadID: lead.ID,
		EmailMessage: models.EmailMessage{
			Direction:  models.DirectionSent,
			From:       strings.TrimSpace(input.From),
			To:         input.To,
			Subject:    input.Subject,
			Body:       input.Body,
			OccurredAt: now,
		},
	}
	if input.OccurredAt != nil {
		entry.OccurredAt = *input.OccurredAt
	}

	if input.Direction == models.DirectionReceived {
		entry.Direction = models.DirectionReceived
		if entry.From == "" {
			entry.From = lead.Email
		}
	} else {
		if entry.To == "" {
			entry.To = lead.Email
		}
		if entry.To == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Lead has no email address", nil)
		}
		msg := utils.OutgoingEmail{To: []string{entry.To}, Subject: entry.Subject, Markdown: entry.Body}
		messageID, err := ec.send(c, msg)
		if err != nil {
			return deliveryError(c, err, msg)
		}
		entry.MessageID = messageID
		entry.From = ec.Mailer.From()
		entry.OccurredAt = now
	}

	err := ec.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.Lead{}).Where("id = ?", lead.ID).Update("last_contact", entry.OccurredAt).Error
	})
	if err != nil {
		utils.LogError("lead_email_log", err, map[string]interface{}{"lead_id": lead.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record email", err)
	}

	publish(ec.Events, EntityEmail, ActionCreated, entry.ID)
	publish(ec.Events, EntityLead, ActionUpdated, lead.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(entry))
}
