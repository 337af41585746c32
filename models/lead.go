package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead represents a prospect moving through the sales pipeline
type Lead struct {
	gorm.Model

	Name    string `gorm:"not null" json:"name"`
	Email   string `gorm:"index" json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`

	// Pipeline
	Stage               LeadStage  `gorm:"not null;default:'prospect';index" json:"stage"`
	LikelihoodOfClosing Likelihood `json:"likelihood_of_closing"`
	EngagementLevel     string     `json:"engagement_level"`
	LastContact         *time.Time `json:"last_contact"`
	NextStep            string     `json:"next_step"`

	// Metadata
	Notes        string                      `gorm:"type:text" json:"notes"`
	InterestTags datatypes.JSONSlice[string] `json:"interest_tags"`
	HowHeard     string                      `json:"how_heard"`
	Source       string                      `json:"source"` // manual, csv

	// Relations
	Emails []LeadEmailHistory `gorm:"foreignKey:LeadID" json:"emails,omitempty"`
}
