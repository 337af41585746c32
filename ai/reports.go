package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

const (
	defaultReportLimit = 5
	excerptWithSummary = 1500
	excerptWithout     = 6000
)

// reportContext is a report reduced to the parts prompts use. Summary text is
// split into sections before it reaches a prompt.
type reportContext struct {
	ID            uint
	Title         string
	Type          string
	Date          string
	KeyInsights   []string
	Detailed      string
	Comprehensive string
	Body          string
}

// loadReports fetches the requested reports, or the most recent ones when ids
// is empty. Unknown ids are ignored.
func (s *Service) loadReports(ctx context.Context, ids []uint, since *time.Time, limit int) ([]models.ContentReport, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}

	q := s.db.WithContext(ctx).Preload("Summaries", func(db *gorm.DB) *gorm.DB {
		return db.Order("updated_at DESC")
	})
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	} else {
		if since != nil {
			q = q.Where("COALESCE(published_date, created_at) >= ?", *since)
		}
		q = q.Limit(limit)
	}

	var reports []models.ContentReport
	if err := q.Order("published_date DESC").Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("loading content reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, ErrNoReports
	}
	return reports, nil
}

func buildReportContexts(reports []models.ContentReport) []reportContext {
	out := make([]reportContext, 0, len(reports))
	for _, r := range reports {
		out = append(out, buildReportContext(r))
	}
	return out
}

func buildReportContext(r models.ContentReport) reportContext {
	rc := reportContext{
		ID:          r.ID,
		Title:       r.Title,
		Type:        string(r.Type),
		KeyInsights: r.KeyInsights,
	}
	if r.PublishedDate != nil {
		rc.Date = r.PublishedDate.Format("2006-01-02")
	}

	summary := r.ContentSummary
	if len(r.Summaries) > 0 {
		summary = r.Summaries[0].ParsedSummary
	}
	sections := utils.SplitSummary(summary)
	switch sections.Format {
	case utils.SummaryFormatRaw:
		rc.Detailed = sections.Full
	default:
		rc.Detailed = sections.Detailed
		rc.Comprehensive = sections.Comprehensive
	}

	limit := excerptWithout
	if sections.Full != "" {
		limit = excerptWithSummary
	}
	rc.Body = truncate(strings.TrimSpace(r.FullContent), limit)
	return rc
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

func reportTitles(reports []models.ContentReport) map[uint]string {
	titles := make(map[uint]string, len(reports))
	for _, r := range reports {
		titles[r.ID] = r.Title
	}
	return titles
}

// knownIDs keeps the ids present in titles, preserving order and dropping duplicates.
func knownIDs(ids []uint, titles map[uint]string) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if _, ok := titles[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
