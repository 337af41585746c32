package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailMessage holds the columns shared by the append-only email logs.
type EmailMessage struct {
	Direction  string    `gorm:"not null;index" json:"direction"` // sent, received
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `gorm:"type:text" json:"body"`
	MessageID  string    `gorm:"index" json:"message_id,omitempty"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
}

// EmailHistory logs reminders and replies for an invoice.
type EmailHistory struct {
	gorm.Model
	InvoiceID uint `gorm:"not null;index" json:"invoice_id"`
	EmailMessage
}

// LeadEmailHistory logs outreach and replies for a lead.
type LeadEmailHistory struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`
	EmailMessage
}
