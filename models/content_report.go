package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentReport is an uploaded or imported research report.
type ContentReport struct {
	gorm.Model

	Title         string     `gorm:"not null" json:"title"`
	Type          ReportType `gorm:"not null;default:'other';index" json:"type"`
	SourceType    string     `gorm:"not null;default:'manual'" json:"source_type"` // pdf, url, manual
	SourceURL     string     `json:"source_url,omitempty"`
	PublishedDate *time.Time `json:"published_date"`

	// Distribution stats
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`

	Tags           datatypes.JSONSlice[string] `json:"tags"`
	FullContent    string                      `gorm:"type:text" json:"full_content,omitempty"`
	KeyInsights    datatypes.JSONSlice[string] `json:"key_insights"`
	RiskFactors    datatypes.JSONSlice[string] `json:"risk_factors"`
	ContentSummary string                      `gorm:"type:text" json:"content_summary"`

	// Relations
	Summaries []ReportSummary `gorm:"foreignKey:ContentReportID" json:"summaries,omitempty"`
}

// ReportSummary holds raw model output for a report. Sections are derived on read.
// There is at most one summary per report and summary type.
type ReportSummary struct {
	gorm.Model
	ContentReportID uint `gorm:"not null;uniqueIndex:idx_report_summary_type" json:"content_report_id"`

	ParsedSummary string `gorm:"type:text;not null" json:"parsed_summary"`
	SummaryType   string `gorm:"not null;default:'comprehensive';uniqueIndex:idx_report_summary_type" json:"summary_type"`
}
