package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

// FeedbackController stores ratings. Nothing reads them back into prompts;
// they are kept for manual review.
type FeedbackController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewFeedbackController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *FeedbackController {
	return &FeedbackController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

type feedbackInput struct {
	Category    string `json:"category" validate:"required,max=100"`
	ReferenceID *uint  `json:"reference_id"`
	Rating      string `json:"rating" validate:"required,rating"`
	Comment     string `json:"comment" validate:"max=5000"`
}

type aiFeedbackInput struct {
	ContentID     string `json:"content_id" validate:"required,uuid"`
	Rating        string `json:"rating" validate:"required,rating"`
	Comment       string `json:"comment" validate:"max=5000"`
	EditedVersion string `json:"edited_version"`
}

func (fc *FeedbackController) CreateFeedback(c *fiber.Ctx) error {
	var input feedbackInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	fb := models.Feedback{
		Category:    input.Category,
		ReferenceID: input.ReferenceID,
		Rating:      input.Rating,
		Comment:     input.Comment,
	}
	if err := fc.DB.Create(&fb).Error; err != nil {
		utils.LogError("feedback_create", err, map[string]interface{}{"category": fb.Category})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save feedback", err)
	}

	publish(fc.Events, EntityFeedback, ActionCreated, fb.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fb))
}

// GetFeedback lists feedback, optionally for one category and reference
func (fc *FeedbackController) GetFeedback(c *fiber.Ctx) error {
	page, limit, offset := utils.Pagination(c)

	query := fc.DB.Model(&models.Feedback{})
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if ref := c.QueryInt("reference_id", 0); ref > 0 {
		query = query.Where("reference_id = ?", ref)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count feedback", err)
	}

	var items []models.Feedback
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch feedback", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  items,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// CreateAIFeedback rates a stored generation
func (fc *FeedbackController) CreateAIFeedback(c *fiber.Ctx) error {
	var input aiFeedbackInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var content models.AIGeneratedContent
	if err := fc.DB.Where("content_id = ?", input.ContentID).First(&content).Error; err != nil {
		return fetchError(c, err, "Generated content")
	}

	fb := models.AIContentFeedback{
		ContentID:     input.ContentID,
		Rating:        input.Rating,
		Comment:       input.Comment,
		EditedVersion: input.EditedVersion,
	}
	if err := fc.DB.Create(&fb).Error; err != nil {
		utils.LogError("ai_feedback_create", err, map[string]interface{}{"content_id": input.ContentID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save feedback", err)
	}

	fc.Logger.WithFields(logrus.Fields{
		"content_id": fb.ContentID,
		"tool":       content.Tool,
		"rating":     fb.Rating,
	}).Info("AI feedback recorded")
	publish(fc.Events, EntityFeedback, ActionCreated, fb.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fb))
}

// GetAIContent returns a stored generation with its feedback
func (fc *FeedbackController) GetAIContent(c *fiber.Ctx) error {
	contentID := c.Params("contentId")
	if contentID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid content ID", nil)
	}

	var content models.AIGeneratedContent
	if err := fc.DB.Preload("Feedback", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC")
	}).Where("content_id = ?", contentID).First(&content).Error; err != nil {
		return fetchError(c, err, "Generated content")
	}
	return c.JSON(utils.SuccessResponse(content))
}
