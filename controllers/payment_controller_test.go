package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"salesdesk/models"
)

const testWebhookSecret = "whsec_test_secret"

func newPaymentApp(t *testing.T, secretKey string) (*fiber.App, *PaymentController, *eventRecorder) {
	t.Helper()
	db := newTestDB(t)
	events := &eventRecorder{}
	pc := NewPaymentController(db, quietLogger(), events, secretKey, testWebhookSecret)

	app := fiber.New()
	app.Post("/payments/webhook", pc.HandleWebhook)
	app.Post("/invoices/:id/payment-intent", pc.CreatePaymentIntent)
	return app, pc, events
}

func signedWebhook(t *testing.T, app *fiber.App, eventType string, object map[string]interface{}) int {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(fiber.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestWebhookMarksInvoicePaid(t *testing.T) {
	app, pc, events := newPaymentApp(t, "")
	_, invoice := seedClientInvoice(t, pc.DB, "ap@acme.com", "INV-9")

	status := signedWebhook(t, app, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_123",
		"object":   "payment_intent",
		"amount":   125050,
		"metadata": map[string]string{"invoice_id": itoa(invoice.ID)},
	})
	require.Equal(t, fiber.StatusOK, status)

	var reloaded models.Invoice
	require.NoError(t, pc.DB.First(&reloaded, invoice.ID).Error)
	assert.Equal(t, models.InvoicePaid, reloaded.Status)
	assert.NotNil(t, reloaded.PaidAt)
	assert.Equal(t, "pi_123", reloaded.StripePaymentIntentID)
	assert.True(t, events.has(EntityInvoice, ActionUpdated))

	// redelivery is a no-op
	status = signedWebhook(t, app, "payment_intent.succeeded", map[string]interface{}{
		"id":     "pi_123",
		"object": "payment_intent",
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestWebhookUnknownInvoice(t *testing.T) {
	app, _, _ := newPaymentApp(t, "")

	status := signedWebhook(t, app, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_missing",
		"object":   "payment_intent",
		"metadata": map[string]string{"invoice_id": "4242"},
	})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestWebhookAmountMismatchLeavesInvoiceUnpaid(t *testing.T) {
	app, pc, events := newPaymentApp(t, "")
	_, invoice := seedClientInvoice(t, pc.DB, "ap@acme.com", "INV-9")

	status := signedWebhook(t, app, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_partial",
		"object":   "payment_intent",
		"amount":   50000,
		"metadata": map[string]string{"invoice_id": itoa(invoice.ID)},
	})
	assert.Equal(t, fiber.StatusOK, status)

	var reloaded models.Invoice
	require.NoError(t, pc.DB.First(&reloaded, invoice.ID).Error)
	assert.Equal(t, models.InvoicePending, reloaded.Status)
	assert.Nil(t, reloaded.PaidAt)
	assert.False(t, events.has(EntityInvoice, ActionUpdated))
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	app, pc, _ := newPaymentApp(t, "")
	_, invoice := seedClientInvoice(t, pc.DB, "ap@acme.com", "INV-9")

	status := signedWebhook(t, app, "payment_intent.payment_failed", map[string]interface{}{
		"id":       "pi_123",
		"object":   "payment_intent",
		"metadata": map[string]string{"invoice_id": itoa(invoice.ID)},
	})
	assert.Equal(t, fiber.StatusOK, status)

	status = signedWebhook(t, app, "customer.created", map[string]interface{}{"id": "cus_1", "object": "customer"})
	assert.Equal(t, fiber.StatusOK, status)

	var reloaded models.Invoice
	require.NoError(t, pc.DB.First(&reloaded, invoice.ID).Error)
	assert.Equal(t, models.InvoicePending, reloaded.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, _, _ := newPaymentApp(t, "")

	req := httptest.NewRequest(fiber.MethodPost, "/payments/webhook", bytes.NewReader([]byte(`{"type":"payment_intent.succeeded"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPost, "/payments/webhook", bytes.NewReader([]byte(`{}`)))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentIntent(t *testing.T) {
	orig := createPaymentIntent
	t.Cleanup(func() { createPaymentIntent = orig })

	var got *stripe.PaymentIntentParams
	createPaymentIntent = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		got = params
		return &stripe.PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret"}, nil
	}

	app, pc, _ := newPaymentApp(t, "sk_test_key")
	_, invoice := seedClientInvoice(t, pc.DB, "ap@acme.com", "INV-3")

	status, env := doRequest(t, app, fiber.MethodPost, "/invoices/"+itoa(invoice.ID)+"/payment-intent", "")
	require.Equal(t, fiber.StatusOK, status, env.Error)

	require.NotNil(t, got)
	assert.Equal(t, int64(125050), *got.Amount)
	assert.Equal(t, "usd", *got.Currency)
	assert.Equal(t, itoa(invoice.ID), got.Metadata["invoice_id"])
	assert.Equal(t, "ap@acme.com", *got.ReceiptEmail)

	var data struct {
		ClientSecret    string `json:"client_secret"`
		PaymentIntentID string `json:"payment_intent_id"`
		Amount          int64  `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "pi_new_secret", data.ClientSecret)
	assert.Equal(t, int64(125050), data.Amount)

	var reloaded models.Invoice
	require.NoError(t, pc.DB.First(&reloaded, invoice.ID).Error)
	assert.Equal(t, "pi_new", reloaded.StripePaymentIntentID)
}

func TestCreatePaymentIntentErrors(t *testing.T) {
	orig := createPaymentIntent
	t.Cleanup(func() { createPaymentIntent = orig })
	createPaymentIntent = func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		return nil, errors.New("card network down")
	}

	unconfigured, pc0, _ := newPaymentApp(t, "")
	_, invoice0 := seedClientInvoice(t, pc0.DB, "ap@acme.com", "INV-1")
	status, _ := doRequest(t, unconfigured, fiber.MethodPost, "/invoices/"+itoa(invoice0.ID)+"/payment-intent", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	app, pc, _ := newPaymentApp(t, "sk_test_key")
	_, invoice := seedClientInvoice(t, pc.DB, "ap@acme.com", "INV-1")
	status, _ = doRequest(t, app, fiber.MethodPost, "/invoices/"+itoa(invoice.ID)+"/payment-intent", "")
	assert.Equal(t, fiber.StatusBadGateway, status)

	require.NoError(t, pc.DB.Model(&invoice).Update("status", models.InvoiceWrittenOff).Error)
	status, _ = doRequest(t, app, fiber.MethodPost, "/invoices/"+itoa(invoice.ID)+"/payment-intent", "")
	assert.Equal(t, fiber.StatusConflict, status)
}
