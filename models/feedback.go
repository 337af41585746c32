package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Feedback is a free-form rating on any item (report summary, dashboard, etc.).
type Feedback struct {
	gorm.Model
	Category    string `gorm:"not null;index" json:"category"`
	ReferenceID *uint  `gorm:"index" json:"reference_id,omitempty"`
	Rating      string `gorm:"not null" json:"rating"` // up, down
	Comment     string `gorm:"type:text" json:"comment"`
}

// AIGeneratedContent stores the request and result of a successful generation.
type AIGeneratedContent struct {
	gorm.Model
	ContentID string         `gorm:"uniqueIndex;not null" json:"content_id"`
	Tool      string         `gorm:"not null;index" json:"tool"`
	Input     datatypes.JSON `json:"input"`
	Output    datatypes.JSON `json:"output"`

	Feedback []AIContentFeedback `gorm:"foreignKey:ContentID;references:ContentID" json:"feedback,omitempty"`
}

// AIContentFeedback is kept for manual review only.
type AIContentFeedback struct {
	gorm.Model
	ContentID     string `gorm:"not null;index" json:"content_id"`
	Rating        string `gorm:"not null" json:"rating"` // up, down
	Comment       string `gorm:"type:text" json:"comment"`
	EditedVersion string `gorm:"type:text" json:"edited_version,omitempty"`
}
