package controller

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"salesdesk/ai"
	"salesdesk/models"
	"salesdesk/utils"
)

const maxPDFSize = 25 << 20

var errTitleRequired = errors.New("title is required")

type ContentReportController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	AI     *ai.Service
	Events EventPublisher
}

func NewContentReportController(db *gorm.DB, logger *logrus.Entry, aiService *ai.Service, events EventPublisher) *ContentReportController {
	return &ContentReportController{
		DB:     db,
		Logger: logger,
		AI:     aiService,
		Events: events,
	}
}

type reportInput struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=300"`
	Type           *string    `json:"type" validate:"omitempty,oneof=WILTW WATMTU other"`
	SourceURL      *string    `json:"source_url" validate:"omitempty,url"`
	PublishedDate  *time.Time `json:"published_date"`
	OpenRate       *float64   `json:"open_rate" validate:"omitempty,gte=0,lte=100"`
	ClickRate      *float64   `json:"click_rate" validate:"omitempty,gte=0,lte=100"`
	Tags           *[]string  `json:"tags"`
	FullContent    *string    `json:"full_content"`
	KeyInsights    *[]string  `json:"key_insights"`
	RiskFactors    *[]string  `json:"risk_factors"`
	ContentSummary *string    `json:"content_summary"`
}

func (in reportInput) apply(r *models.ContentReport) {
	if in.Title != nil {
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.Type != nil {
		r.Type = models.ReportType(*in.Type)
	}
	if in.SourceURL != nil {
		r.SourceURL = *in.SourceURL
	}
	if in.PublishedDate != nil {
		r.PublishedDate = in.PublishedDate
	}
	if in.OpenRate != nil {
		r.OpenRate = *in.OpenRate
	}
	if in.ClickRate != nil {
		r.ClickRate = *in.ClickRate
	}
	if in.Tags != nil {
		r.Tags = *in.Tags
	}
	if in.FullContent != nil {
		r.FullContent = *in.FullContent
	}
	if in.KeyInsights != nil {
		r.KeyInsights = *in.KeyInsights
	}
	if in.RiskFactors != nil {
		r.RiskFactors = *in.RiskFactors
	}
	if in.ContentSummary != nil {
		r.ContentSummary = *in.ContentSummary
	}
}

func newReport(source string) models.ContentReport {
	return models.ContentReport{
		Type:        models.ReportOther,
		SourceType:  source,
		Tags:        []string{},
		KeyInsights: []string{},
		RiskFactors: []string{},
	}
}

func (rc *ContentReportController) create(c *fiber.Ctx, report *models.ContentReport) error {
	if err := rc.DB.Create(report).Error; err != nil {
		utils.LogError("content_report_create", err, map[string]interface{}{"title": report.Title, "source": report.SourceType})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create report", err)
	}
	publish(rc.Events, EntityContentReport, ActionCreated, report.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(report))
}

// CreateReport adds a report entered by hand
func (rc *ContentReportController) CreateReport(c *fiber.Ctx) error {
	var input reportInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errTitleRequired)
	}

	report := newReport(models.SourceManual)
	input.apply(&report)
	return rc.create(c, &report)
}

// GetReports lists reports newest first. Full content is omitted from the list.
func (rc *ContentReportController) GetReports(c *fiber.Ctx) error {
	page, limit, offset := utils.Pagination(c)

	query := rc.DB.Model(&models.ContentReport{})
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	if search := c.Query("search"); search != "" {
		query = likeAny(query, likePattern(search), "title", "CAST(tags AS TEXT)")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count reports", err)
	}

	var reports []models.ContentReport
	if err := query.Omit("full_content").
		Order("published_date DESC").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&reports).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch reports", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  reports,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetReport returns a report with its summaries
func (rc *ContentReportController) GetReport(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "report")
	}

	var report models.ContentReport
	if err := rc.DB.Preload("Summaries", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC")
	}).First(&report, id).Error; err != nil {
		return fetchError(c, err, "Report")
	}
	return c.JSON(utils.SuccessResponse(report))
}

func (rc *ContentReportController) UpdateReport(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "report")
	}

	var input reportInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var report models.ContentReport
	if err := rc.DB.First(&report, id).Error; err != nil {
		return fetchError(c, err, "Report")
	}

	input.apply(&report)
	if report.Title == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errTitleRequired)
	}

	if err := rc.DB.Save(&report).Error; err != nil {
		utils.LogError("content_report_update", err, map[string]interface{}{"report_id": id})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update report", err)
	}

	publish(rc.Events, EntityContentReport, ActionUpdated, report.ID)
	return c.JSON(utils.SuccessResponse(report))
}

// DeleteReport removes a report and its summaries
func (rc *ContentReportController) DeleteReport(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "report")
	}

	var report models.ContentReport
	if err := rc.DB.First(&report, id).Error; err != nil {
		return fetchError(c, err, "Report")
	}

	err := rc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("content_report_id = ?", id).Delete(&models.ReportSummary{}).Error; err != nil {
			return err
		}
		return tx.Delete(&report).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete report", err)
	}

	publish(rc.Events, EntityContentReport, ActionDeleted, report.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Report deleted successfully"}))
}

// UploadPDF creates a report from an uploaded PDF. The series is detected
// from the filename first, then the text.
func (rc *ContentReportController) UploadPDF(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No file uploaded", err)
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only PDF files are accepted", nil)
	}
	if file.Size > maxPDFSize {
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "File is too large", nil)
	}

	f, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read upload", err)
	}

	text, err := utils.ExtractPDFText(data)
	if err != nil {
		rc.Logger.WithError(err).WithField("filename", file.Filename).Warn("PDF extraction failed")
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Could not read PDF", err)
	}
	if strings.TrimSpace(text) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "PDF has no extractable text", nil)
	}

	report := newReport(models.SourcePDF)
	report.Title = utils.TitleFromFilename(file.Filename)
	if title := strings.TrimSpace(c.FormValue("title")); title != "" {
		report.Title = title
	}
	report.Type = utils.DetectReportType(file.Filename, text)
	switch t := models.ReportType(c.FormValue("type")); t {
	case models.ReportWILTW, models.ReportWATMTU, models.ReportOther:
		report.Type = t
	}
	report.FullContent = text
	now := time.Now()
	report.PublishedDate = &now

	return rc.create(c, &report)
}

type importURLInput struct {
	URL   string `json:"url" validate:"required,url"`
	Title string `json:"title" validate:"max=300"`
	Type  string `json:"type" validate:"omitempty,oneof=WILTW WATMTU other"`
}

// ImportURL creates a report from the readable text of a web page
func (rc *ContentReportController) ImportURL(c *fiber.Ctx) error {
	var input importURLInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	article, err := utils.FetchArticle(c.UserContext(), input.URL)
	if errors.Is(err, utils.ErrBlockedHost) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "URL host is not allowed", nil)
	}
	if err != nil {
		rc.Logger.WithError(err).WithField("url", input.URL).Warn("URL import failed")
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to import URL", err)
	}

	report := newReport(models.SourceURL)
	report.SourceURL = article.URL
	report.Title = firstNonBlank(input.Title, article.Title, article.URL)
	report.Type = utils.DetectReportType(report.Title, article.Text)
	if input.Type != "" {
		report.Type = models.ReportType(input.Type)
	}
	report.FullContent = article.Text
	report.ContentSummary = article.Excerpt
	now := time.Now()
	report.PublishedDate = &now

	return rc.create(c, &report)
}

// SummarizeReport generates a summary for the report and stores it, replacing
// any earlier summary of the same type.
func (rc *ContentReportController) SummarizeReport(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "report")
	}

	var report models.ContentReport
	if err := rc.DB.First(&report, id).Error; err != nil {
		return fetchError(c, err, "Report")
	}

	summaryType := c.Query("summary_type", "comprehensive")
	var summary models.ReportSummary
	save := func(tx *gorm.DB, gen *ai.Generation[string]) error {
		row := models.ReportSummary{
			ContentReportID: report.ID,
			SummaryType:     summaryType,
			ParsedSummary:   gen.Result,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_report_id"}, {Name: "summary_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"parsed_summary", "updated_at", "deleted_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("content_report_id = ? AND summary_type = ?", report.ID, summaryType).Take(&summary).Error
	}

	gen, err := rc.AI.SummarizeReport(c.UserContext(), &report, save)
	if err != nil {
		return aiError(c, err)
	}

	publish(rc.Events, EntityReportSummary, ActionCreated, summary.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"content_id": gen.ContentID,
		"summary":    summary,
		"sections":   utils.SplitSummary(summary.ParsedSummary),
	}))
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
