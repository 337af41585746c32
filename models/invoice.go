package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice is a bill sent to a client. Amount is stored as numeric(12,2).
type Invoice struct {
	gorm.Model
	ClientID uint    `gorm:"not null;index" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	InvoiceNumber string        `gorm:"uniqueIndex;not null" json:"invoice_number"`
	Amount        float64       `gorm:"type:numeric(12,2);not null" json:"amount"`
	SentDate      *time.Time    `json:"sent_date"`
	DueDate       *time.Time    `json:"due_date"`
	Status        InvoiceStatus `gorm:"not null;default:'pending';index" json:"status"`
	Opportunity   string        `json:"opportunity"`
	Notes         string        `gorm:"type:text" json:"notes"`

	LastReminderSent *time.Time `json:"last_reminder_sent"`
	PaidAt           *time.Time `json:"paid_at"`

	// Stripe
	StripePaymentIntentID string `gorm:"index" json:"stripe_payment_intent_id,omitempty"`

	// Computed on read
	DaysOverdue *int `gorm:"-" json:"days_overdue"`

	// Relations
	Emails []EmailHistory `gorm:"foreignKey:InvoiceID" json:"emails,omitempty"`
}
