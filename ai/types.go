package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"salesdesk/models"
	"salesdesk/utils"
)

// Generation is what every tool returns: the stored content id plus the typed result.
type Generation[T any] struct {
	ContentID string `json:"content_id"`
	Result    T      `json:"result"`
}

const (
	TalkingPointPlain      = "plain"
	TalkingPointStructured = "structured"
)

// TalkingPoint is either a plain sentence or a main point with sub bullets.
// Models return both shapes, so decoding accepts a JSON string or object.
type TalkingPoint struct {
	Kind       string   `json:"kind"`
	Text       string   `json:"text,omitempty"`
	MainPoint  string   `json:"main_point,omitempty"`
	SubBullets []string `json:"sub_bullets,omitempty"`
}

func (tp *TalkingPoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*tp = TalkingPoint{Kind: TalkingPointPlain, Text: strings.TrimSpace(s)}
		return nil
	}

	var raw struct {
		Kind       string   `json:"kind"`
		Text       string   `json:"text"`
		Point      string   `json:"point"`
		MainPoint  string   `json:"main_point"`
		MainPoint2 string   `json:"mainPoint"`
		SubBullets []string `json:"sub_bullets"`
		SubPoints  []string `json:"subBullets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("talking point must be a string or object: %w", err)
	}

	main := firstNonEmpty(raw.MainPoint, raw.MainPoint2, raw.Point)
	bullets := raw.SubBullets
	if len(bullets) == 0 {
		bullets = raw.SubPoints
	}

	if main == "" && len(bullets) == 0 {
		*tp = TalkingPoint{Kind: TalkingPointPlain, Text: strings.TrimSpace(raw.Text)}
		return nil
	}
	if main == "" {
		main = raw.Text
	}
	*tp = TalkingPoint{Kind: TalkingPointStructured, MainPoint: strings.TrimSpace(main), SubBullets: bullets}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Call prep

type CallPrepRequest struct {
	LeadID        *uint    `json:"lead_id"`
	ProspectName  string   `json:"prospect_name" validate:"required_without=LeadID,max=200"`
	ProspectEmail string   `json:"prospect_email" validate:"omitempty,email"`
	Company       string   `json:"company" validate:"max=200"`
	Role          string   `json:"role" validate:"max=200"`
	Interests     []string `json:"interests"`
	Notes         string   `json:"notes" validate:"max=5000"`
	ReportIDs     []uint   `json:"report_ids"`
	LookupDomain  bool     `json:"lookup_domain"`
}

type RelatedReport struct {
	ReportID  uint   `json:"report_id"`
	Title     string `json:"title"`
	Relevance string `json:"relevance"`
}

type CallPrepResult struct {
	ProspectSnapshot   string             `json:"prospect_snapshot"`
	PersonalBackground string             `json:"personal_background"`
	CompanyOverview    string             `json:"company_overview"`
	TopInterests       []string           `json:"top_interests"`
	PortfolioInsights  []string           `json:"portfolio_insights"`
	TalkingPoints      []TalkingPoint     `json:"talking_points"`
	SmartQuestions     []string           `json:"smart_questions"`
	RelatedReports     []RelatedReport    `json:"related_reports"`
	DomainFacts        *utils.DomainFacts `json:"domain_facts,omitempty"`
}

// Campaigns

type CampaignSuggestionRequest struct {
	ReportIDs []uint `json:"report_ids"`
	Audience  string `json:"audience" validate:"max=500"`
	Goal      string `json:"goal" validate:"max=500"`
	Count     int    `json:"count" validate:"omitempty,min=1,max=10"`
}

type ContentSuggestion struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Angle          string `json:"angle"`
	TargetAudience string `json:"target_audience"`
	KeyMessage     string `json:"key_message"`
	ReportIDs      []uint `json:"report_ids"`
}

type CampaignEmailRequest struct {
	ReportIDs    []uint `json:"report_ids" validate:"required,min=1"`
	Audience     string `json:"audience" validate:"max=500"`
	Tone         string `json:"tone" validate:"max=100"`
	CallToAction string `json:"call_to_action" validate:"max=500"`
	Suggestion   string `json:"suggestion" validate:"max=1000"`
}

type GeneratedEmail struct {
	Subject     string `json:"subject"`
	PreviewText string `json:"preview_text,omitempty"`
	Body        string `json:"body"`
	HTML        string `json:"html"`
}

// Themes

type ThemeTrackingRequest struct {
	ReportIDs []uint     `json:"report_ids"`
	Since     *time.Time `json:"since"`
	Limit     int        `json:"limit" validate:"omitempty,min=1,max=50"`
}

type Theme struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Trend       string   `json:"trend"` // rising, steady, fading
	ReportIDs   []uint   `json:"report_ids"`
	Evidence    []string `json:"evidence"`
}

type ThemeEmailRequest struct {
	ThemeName        string `json:"theme_name" validate:"required,max=200"`
	ThemeDescription string `json:"theme_description" validate:"max=2000"`
	ReportIDs        []uint `json:"report_ids"`
	Audience         string `json:"audience" validate:"max=500"`
	Tone             string `json:"tone" validate:"max=100"`
}

// Lead scoring

type LeadScoringRequest struct {
	LeadIDs []uint `json:"lead_ids"`
}

type LeadScore struct {
	LeadID     uint              `json:"lead_id"`
	Name       string            `json:"name"`
	Score      int               `json:"score"`
	Likelihood models.Likelihood `json:"likelihood"`
	Reasoning  string            `json:"reasoning"`
	NextStep   string            `json:"next_step"`
}

// Fund matching

type FundMatchRequest struct {
	LeadID       *uint    `json:"lead_id"`
	ProspectName string   `json:"prospect_name" validate:"required_without=LeadID,max=200"`
	Company      string   `json:"company" validate:"max=200"`
	Strategy     string   `json:"strategy" validate:"max=1000"`
	Interests    []string `json:"interests"`
	ReportIDs    []uint   `json:"report_ids"`
	Limit        int      `json:"limit" validate:"omitempty,min=1,max=20"`
}

type FundMatch struct {
	ReportID  uint   `json:"report_id"`
	Title     string `json:"title"`
	Relevance int    `json:"relevance"`
	Rationale string `json:"rationale"`
}
