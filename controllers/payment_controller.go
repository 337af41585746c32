package controller

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

// createPaymentIntent is swapped out in tests.
var createPaymentIntent = paymentintent.New

// PaymentController takes invoice payments through Stripe payment intents.
type PaymentController struct {
	DB            *gorm.DB
	Logger        *logrus.Entry
	Events        EventPublisher
	SecretKey     string
	WebhookSecret string
}

func NewPaymentController(db *gorm.DB, logger *logrus.Entry, events EventPublisher, secretKey, webhookSecret string) *PaymentController {
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &PaymentController{
		DB:            db,
		Logger:        logger,
		Events:        events,
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
	}
}

// CreatePaymentIntent opens a Stripe payment intent for the outstanding invoice amount
func (pc *PaymentController) CreatePaymentIntent(c *fiber.Ctx) error {
	if pc.SecretKey == "" {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Payments are not configured", nil)
	}

	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "invoice")
	}

	var invoice models.Invoice
	if err := pc.DB.Preload("Client").First(&invoice, id).Error; err != nil {
		return fetchError(c, err, "Invoice")
	}
	if invoice.Status.Settled() {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invoice is already settled", nil)
	}
	amount := utils.AmountToCents(invoice.Amount)
	if amount <= 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invoice amount must be positive", nil)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Metadata: map[string]string{
			"invoice_id":     strconv.Itoa(int(invoice.ID)),
			"invoice_number": invoice.InvoiceNumber,
		},
		Description: stripe.String("Invoice " + invoice.InvoiceNumber),
	}
	params.Context = c.UserContext()
	if invoice.Client != nil && invoice.Client.Email != "" {
		params.ReceiptEmail = stripe.String(invoice.Client.Email)
	}

	pi, err := createPaymentIntent(params)
	if err != nil {
		utils.LogError("stripe_payment_intent", err, map[string]interface{}{"invoice_id": invoice.ID})
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to create payment intent", err)
	}

	if err := pc.DB.Model(&invoice).Update("stripe_payment_intent_id", pi.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record payment intent", err)
	}

	pc.Logger.WithFields(logrus.Fields{
		"invoice_id":        invoice.ID,
		"payment_intent_id": pi.ID,
	}).Info("Payment intent created")
	publish(pc.Events, EntityInvoice, ActionUpdated, invoice.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"client_secret":     pi.ClientSecret,
		"payment_intent_id": pi.ID,
		"amount":            amount,
		"currency":          string(stripe.CurrencyUSD),
	}))
}

// HandleWebhook handles Stripe webhook events
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c.Body(), c.Get("Stripe-Signature"), pc.WebhookSecret)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Error parsing payment intent", err)
		}
		return pc.paymentSucceeded(c, &pi)

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Error parsing payment intent", err)
		}
		msg := ""
		if pi.LastPaymentError != nil {
			msg = pi.LastPaymentError.Msg
		}
		utils.LogEvent("invoice_payment_failed", map[string]interface{}{
			"payment_intent_id": pi.ID,
			"invoice_id":        pi.Metadata["invoice_id"],
			"reason":            msg,
		})
		return c.SendStatus(fiber.StatusOK)

	default:
		return c.SendStatus(fiber.StatusOK)
	}
}

func (pc *PaymentController) findInvoice(pi *stripe.PaymentIntent) (*models.Invoice, error) {
	var invoice models.Invoice
	err := pc.DB.Where("stripe_payment_intent_id = ?", pi.ID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		id, convErr := strconv.Atoi(pi.Metadata["invoice_id"])
		if convErr != nil || id <= 0 {
			return nil, err
		}
		err = pc.DB.First(&invoice, id).Error
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// paymentSucceeded marks the invoice paid when the intent covers its full amount
func (pc *PaymentController) paymentSucceeded(c *fiber.Ctx, pi *stripe.PaymentIntent) error {
	invoice, err := pc.findInvoice(pi)
	if err != nil {
		pc.Logger.WithField("payment_intent_id", pi.ID).Warn("Invoice not found for payment intent")
		return fetchError(c, err, "Invoice")
	}
	if invoice.Status == models.InvoicePaid {
		return c.SendStatus(fiber.StatusOK)
	}

	// a partial or stale intent must not settle the invoice
	if expected := utils.AmountToCents(invoice.Amount); pi.Amount != expected {
		pc.Logger.WithFields(logrus.Fields{
			"invoice_id":        invoice.ID,
			"payment_intent_id": pi.ID,
			"amount":            pi.Amount,
			"expected":          expected,
		}).Warn("Payment amount does not match invoice; leaving it unpaid")
		utils.LogEvent("invoice_payment_mismatch", map[string]interface{}{
			"invoice_id":        invoice.ID,
			"payment_intent_id": pi.ID,
			"amount":            pi.Amount,
			"expected":          expected,
		})
		return c.SendStatus(fiber.StatusOK)
	}

	paidAt := time.Now()
	err = pc.DB.Model(invoice).Updates(map[string]interface{}{
		"status":                   models.InvoicePaid,
		"paid_at":                  paidAt,
		"stripe_payment_intent_id": pi.ID,
	}).Error
	if err != nil {
		utils.LogError("invoice_mark_paid", err, map[string]interface{}{"invoice_id": invoice.ID, "payment_intent_id": pi.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update invoice", err)
	}

	utils.LogEvent("invoice_paid", map[string]interface{}{
		"invoice_id":        invoice.ID,
		"payment_intent_id": pi.ID,
		"amount":            pi.Amount,
	})
	publish(pc.Events, EntityInvoice, ActionUpdated, invoice.ID)
	return c.SendStatus(fiber.StatusOK)
}
