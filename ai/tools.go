package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"salesdesk/llm"
	"salesdesk/models"
	"salesdesk/utils"
)

var (
	ErrNoLeads     = errors.New("no leads to score")
	ErrEmptyReport = errors.New("report has no content to summarize")
)

const (
	domainLookupTimeout = 10 * time.Second
	maxScoredLeads      = 50
	maxSummaryInput     = 24000
)

type callPrepData struct {
	Name      string
	Email     string
	Company   string
	Role      string
	Stage     string
	Notes     string
	Interests []string
	Domain    *utils.DomainFacts
	Reports   []reportContext
}

// GenerateCallPrep builds a call briefing for a prospect. Fields missing from
// the request are filled from the lead when LeadID is set.
func (s *Service) GenerateCallPrep(ctx context.Context, req CallPrepRequest) (*Generation[CallPrepResult], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	data := callPrepData{
		Name:      strings.TrimSpace(req.ProspectName),
		Email:     strings.TrimSpace(req.ProspectEmail),
		Company:   req.Company,
		Role:      req.Role,
		Notes:     req.Notes,
		Interests: req.Interests,
	}
	if req.LeadID != nil {
		var lead models.Lead
		if err := s.db.WithContext(ctx).First(&lead, *req.LeadID).Error; err != nil {
			return nil, err
		}
		data.Name = firstNonEmpty(data.Name, lead.Name)
		data.Email = firstNonEmpty(data.Email, lead.Email)
		data.Company = firstNonEmpty(data.Company, lead.Company)
		data.Notes = firstNonEmpty(data.Notes, lead.Notes)
		data.Stage = string(lead.Stage)
		if len(data.Interests) == 0 {
			data.Interests = lead.InterestTags
		}
	}

	reports, err := s.loadReports(ctx, req.ReportIDs, nil, defaultReportLimit)
	if err != nil && !errors.Is(err, ErrNoReports) {
		return nil, err
	}
	data.Reports = buildReportContexts(reports)
	titles := reportTitles(reports)

	if req.LookupDomain && data.Email != "" && s.LookupDomain != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, domainLookupTimeout)
		facts, err := s.LookupDomain(lookupCtx, data.Email)
		cancel()
		if err != nil {
			s.log.WithError(err).WithField("email", data.Email).Warn("Domain lookup failed")
		}
		data.Domain = facts
	}

	decode := func(text string) (CallPrepResult, error) {
		var r CallPrepResult
		if err := llm.DecodeJSON(text, &r); err != nil {
			return r, err
		}
		related := r.RelatedReports[:0]
		for _, rr := range r.RelatedReports {
			if title, ok := titles[rr.ReportID]; ok {
				rr.Title = title
				related = append(related, rr)
			}
		}
		r.RelatedReports = related
		r.DomainFacts = data.Domain
		return r, nil
	}

	return generate(ctx, s, ToolCallPrep, req, data, decode)
}

type campaignData struct {
	Audience string
	Goal     string
	Count    int
	Reports  []reportContext
}

func (s *Service) SuggestCampaigns(ctx context.Context, req CampaignSuggestionRequest) (*Generation[[]ContentSuggestion], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	reports, err := s.loadReports(ctx, req.ReportIDs, nil, defaultReportLimit)
	if err != nil {
		return nil, err
	}
	titles := reportTitles(reports)

	count := req.Count
	if count <= 0 {
		count = 3
	}
	data := campaignData{Audience: req.Audience, Goal: req.Goal, Count: count, Reports: buildReportContexts(reports)}

	decode := func(text string) ([]ContentSuggestion, error) {
		var suggestions []ContentSuggestion
		if err := llm.DecodeJSON(text, &suggestions); err != nil {
			return nil, err
		}
		for i := range suggestions {
			suggestions[i].ID = uuid.NewString()
			suggestions[i].ReportIDs = knownIDs(suggestions[i].ReportIDs, titles)
		}
		return suggestions, nil
	}

	return generate(ctx, s, ToolContentSuggestions, req, data, decode)
}

type campaignEmailData struct {
	Audience     string
	Tone         string
	CallToAction string
	Suggestion   string
	Reports      []reportContext
}

func (s *Service) GenerateCampaignEmail(ctx context.Context, req CampaignEmailRequest) (*Generation[GeneratedEmail], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	reports, err := s.loadReports(ctx, req.ReportIDs, nil, defaultReportLimit)
	if err != nil {
		return nil, err
	}
	data := campaignEmailData{
		Audience:     req.Audience,
		Tone:         req.Tone,
		CallToAction: req.CallToAction,
		Suggestion:   req.Suggestion,
		Reports:      buildReportContexts(reports),
	}

	return generate(ctx, s, ToolCampaignEmail, req, data, decodeEmail)
}

type themeData struct {
	Limit   int
	Reports []reportContext
}

// TrackThemes finds recurring themes across the given reports, or the recent
// ones when none are named.
func (s *Service) TrackThemes(ctx context.Context, req ThemeTrackingRequest) (*Generation[[]Theme], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	reports, err := s.loadReports(ctx, req.ReportIDs, req.Since, 10)
	if err != nil {
		return nil, err
	}
	titles := reportTitles(reports)

	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	data := themeData{Limit: limit, Reports: buildReportContexts(reports)}

	decode := func(text string) ([]Theme, error) {
		var themes []Theme
		if err := llm.DecodeJSON(text, &themes); err != nil {
			return nil, err
		}
		if len(themes) > limit {
			themes = themes[:limit]
		}
		for i := range themes {
			themes[i].ID = uuid.NewString()
			themes[i].ReportIDs = knownIDs(themes[i].ReportIDs, titles)
			themes[i].Trend = normalizeTrend(themes[i].Trend)
		}
		return themes, nil
	}

	return generate(ctx, s, ToolTrackThemes, req, data, decode)
}

func normalizeTrend(trend string) string {
	switch t := strings.ToLower(strings.TrimSpace(trend)); t {
	case "rising", "steady", "fading":
		return t
	case "emerging", "growing", "increasing":
		return "rising"
	case "declining", "decreasing":
		return "fading"
	default:
		return "steady"
	}
}

type themeEmailData struct {
	ThemeName        string
	ThemeDescription string
	Audience         string
	Tone             string
	Reports          []reportContext
}

func (s *Service) GenerateThemeEmail(ctx context.Context, req ThemeEmailRequest) (*Generation[GeneratedEmail], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	reports, err := s.loadReports(ctx, req.ReportIDs, nil, defaultReportLimit)
	if err != nil && !errors.Is(err, ErrNoReports) {
		return nil, err
	}
	data := themeEmailData{
		ThemeName:        req.ThemeName,
		ThemeDescription: req.ThemeDescription,
		Audience:         req.Audience,
		Tone:             req.Tone,
		Reports:          buildReportContexts(reports),
	}

	return generate(ctx, s, ToolThemeEmail, req, data, decodeEmail)
}

func decodeEmail(text string) (GeneratedEmail, error) {
	var email GeneratedEmail
	if err := llm.DecodeJSON(text, &email); err != nil {
		return email, err
	}
	email.Subject = strings.TrimSpace(email.Subject)
	email.Body = strings.TrimSpace(email.Body)
	if email.Subject == "" || email.Body == "" {
		return email, fmt.Errorf("email is missing a subject or body")
	}
	html, err := utils.RenderMarkdown(email.Body)
	if err != nil {
		return email, err
	}
	email.HTML = html
	return email, nil
}

type leadScoringData struct {
	Leads []models.Lead
}

// ScoreLeads scores the named leads, or every open lead when none are named.
// Scores for leads that were not asked about are dropped.
func (s *Service) ScoreLeads(ctx context.Context, req LeadScoringRequest) (*Generation[[]LeadScore], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	q := s.db.WithContext(ctx).Order("id")
	if len(req.LeadIDs) > 0 {
		q = q.Where("id IN ?", req.LeadIDs)
	} else {
		q = q.Where("stage NOT IN ?", []models.LeadStage{models.StageClosedWon, models.StageClosedLost}).Limit(maxScoredLeads)
	}
	var leads []models.Lead
	if err := q.Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("loading leads: %w", err)
	}
	if len(leads) == 0 {
		return nil, ErrNoLeads
	}

	names := make(map[uint]string, len(leads))
	for _, l := range leads {
		names[l.ID] = l.Name
	}

	decode := func(text string) ([]LeadScore, error) {
		var raw []LeadScore
		if err := llm.DecodeJSON(text, &raw); err != nil {
			return nil, err
		}
		scores := make([]LeadScore, 0, len(raw))
		seen := make(map[uint]bool, len(raw))
		for _, sc := range raw {
			name, ok := names[sc.LeadID]
			if !ok || seen[sc.LeadID] {
				continue
			}
			seen[sc.LeadID] = true
			sc.Name = name
			sc.Score = clampScore(sc.Score)
			sc.Likelihood = models.Likelihood(strings.ToLower(string(sc.Likelihood)))
			if !sc.Likelihood.Valid() {
				sc.Likelihood = likelihoodFor(sc.Score)
			}
			scores = append(scores, sc)
		}
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
		return scores, nil
	}

	return generate(ctx, s, ToolLeadScoring, req, leadScoringData{Leads: leads}, decode)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func likelihoodFor(score int) models.Likelihood {
	switch {
	case score >= 70:
		return models.LikelihoodHigh
	case score >= 40:
		return models.LikelihoodMedium
	default:
		return models.LikelihoodLow
	}
}

type fundMatchData struct {
	Name      string
	Company   string
	Strategy  string
	Interests []string
	Limit     int
	Reports   []reportContext
}

// MatchProspectFunds ranks reports by relevance to a prospect's fund focus.
func (s *Service) MatchProspectFunds(ctx context.Context, req FundMatchRequest) (*Generation[[]FundMatch], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	data := fundMatchData{
		Name:      strings.TrimSpace(req.ProspectName),
		Company:   req.Company,
		Strategy:  req.Strategy,
		Interests: req.Interests,
		Limit:     req.Limit,
	}
	if data.Limit <= 0 {
		data.Limit = 5
	}
	if req.LeadID != nil {
		var lead models.Lead
		if err := s.db.WithContext(ctx).First(&lead, *req.LeadID).Error; err != nil {
			return nil, err
		}
		data.Name = firstNonEmpty(data.Name, lead.Name)
		data.Company = firstNonEmpty(data.Company, lead.Company)
		if len(data.Interests) == 0 {
			data.Interests = lead.InterestTags
		}
	}

	reports, err := s.loadReports(ctx, req.ReportIDs, nil, 10)
	if err != nil {
		return nil, err
	}
	data.Reports = buildReportContexts(reports)
	titles := reportTitles(reports)

	decode := func(text string) ([]FundMatch, error) {
		var raw []FundMatch
		if err := llm.DecodeJSON(text, &raw); err != nil {
			return nil, err
		}
		matches := make([]FundMatch, 0, len(raw))
		seen := make(map[uint]bool, len(raw))
		for _, m := range raw {
			title, ok := titles[m.ReportID]
			if !ok || seen[m.ReportID] {
				continue
			}
			seen[m.ReportID] = true
			m.Title = title
			m.Relevance = clampScore(m.Relevance)
			matches = append(matches, m)
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Relevance > matches[j].Relevance })
		if len(matches) > data.Limit {
			matches = matches[:data.Limit]
		}
		return matches, nil
	}

	return generate(ctx, s, ToolFundMatch, req, data, decode)
}

type summarizeData struct {
	Title   string
	Type    string
	Content string
}

// SummarizeReport returns the raw three-section summary text for a report.
// save, when set, stores it (usually as a ReportSummary) in the same
// transaction as the generated content.
func (s *Service) SummarizeReport(ctx context.Context, report *models.ContentReport, save SaveFunc[string]) (*Generation[string], error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}

	content := strings.TrimSpace(report.FullContent)
	if content == "" {
		return nil, ErrEmptyReport
	}
	data := summarizeData{
		Title:   report.Title,
		Type:    string(report.Type),
		Content: truncate(content, maxSummaryInput),
	}

	decode := func(text string) (string, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return "", llm.ErrEmptyResponse
		}
		return text, nil
	}

	input := map[string]interface{}{"report_id": report.ID, "title": report.Title}
	return generateAndSave(ctx, s, ToolSummarizeReport, input, data, decode, save)
}
