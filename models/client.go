package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Client is a paying subscriber of the research product.
type Client struct {
	gorm.Model

	Name             string     `gorm:"not null;index" json:"name"`
	Email            string     `gorm:"index" json:"email"`
	Company          string     `json:"company"`
	SubscriptionType string     `json:"subscription_type"`
	RenewalDate      *time.Time `json:"renewal_date"`

	// Engagement
	EngagementRate float64                     `json:"engagement_rate"`
	ClickRate      float64                     `json:"click_rate"`
	InterestTags   datatypes.JSONSlice[string] `json:"interest_tags"`
	RiskLevel      RiskLevel                   `gorm:"default:'medium'" json:"risk_level"`
	Notes          string                      `gorm:"type:text" json:"notes"`

	// Relations
	Invoices []Invoice `gorm:"foreignKey:ClientID" json:"invoices,omitempty"`
}
