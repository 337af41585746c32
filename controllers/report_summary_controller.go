package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

type ReportSummaryController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewReportSummaryController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *ReportSummaryController {
	return &ReportSummaryController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

// summaryView is a stored summary plus the sections derived from it.
type summaryView struct {
	models.ReportSummary
	Sections utils.SummarySections `json:"sections"`
}

func viewOf(s models.ReportSummary) summaryView {
	return summaryView{ReportSummary: s, Sections: utils.SplitSummary(s.ParsedSummary)}
}

// GetSummaries lists summaries, optionally for a single report
func (sc *ReportSummaryController) GetSummaries(c *fiber.Ctx) error {
	query := sc.DB.Model(&models.ReportSummary{})
	if raw := c.Query("report_id"); raw != "" {
		reportID := c.QueryInt("report_id", 0)
		if reportID <= 0 {
			return invalidID(c, "report")
		}
		query = query.Where("content_report_id = ?", reportID)
	}

	var summaries []models.ReportSummary
	if err := query.Order("created_at DESC").Find(&summaries).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch summaries", err)
	}

	views := make([]summaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, viewOf(s))
	}
	return c.JSON(utils.SuccessResponse(views))
}

func (sc *ReportSummaryController) GetSummary(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "summary")
	}

	var summary models.ReportSummary
	if err := sc.DB.First(&summary, id).Error; err != nil {
		return fetchError(c, err, "Summary")
	}
	return c.JSON(utils.SuccessResponse(viewOf(summary)))
}

func (sc *ReportSummaryController) DeleteSummary(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "summary")
	}

	var summary models.ReportSummary
	if err := sc.DB.First(&summary, id).Error; err != nil {
		return fetchError(c, err, "Summary")
	}
	if err := sc.DB.Unscoped().Delete(&summary).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete summary", err)
	}

	publish(sc.Events, EntityReportSummary, ActionDeleted, summary.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Summary deleted successfully"}))
}
