package utils

import (
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrMissingSignature = errors.New("missing Stripe-Signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ConstructStripeEvent verifies a webhook payload against its Stripe-Signature
// header with tolerance for clock drift.
func ConstructStripeEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithTolerance(payload, signature, secret, 5*time.Minute)
	if err != nil {
		prefix := signature
		if len(prefix) > 10 {
			prefix = prefix[:10]
		}
		logrus.WithError(err).WithField("signature_prefix", prefix+"...").Warn("Failed to verify webhook signature")
		return stripe.Event{}, ErrInvalidSignature
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Info("Stripe webhook event verified")
	return event, nil
}

// AmountToCents converts a dollar amount to the smallest currency unit.
func AmountToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
