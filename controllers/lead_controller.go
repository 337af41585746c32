package controller

import (
	"encoding/csv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewLeadController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

type leadInput struct {
	Name                *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Email               *string    `json:"email" validate:"omitempty,email"`
	Company             *string    `json:"company" validate:"omitempty,max=200"`
	Phone               *string    `json:"phone" validate:"omitempty,max=50"`
	Stage               *string    `json:"stage" validate:"omitempty,lead_stage"`
	LikelihoodOfClosing *string    `json:"likelihood_of_closing" validate:"omitempty,likelihood"`
	EngagementLevel     *string    `json:"engagement_level"`
	LastContact         *time.Time `json:"last_contact"`
	NextStep            *string    `json:"next_step"`
	Notes               *string    `json:"notes"`
	InterestTags        *[]string  `json:"interest_tags"`
	HowHeard            *string    `json:"how_heard"`
}

func (in leadInput) apply(lead *models.Lead) {
	if in.Name != nil {
		lead.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		lead.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Company != nil {
		lead.Company = *in.Company
	}
	if in.Phone != nil {
		lead.Phone = *in.Phone
	}
	if in.Stage != nil {
		lead.Stage = models.LeadStage(*in.Stage)
	}
	if in.LikelihoodOfClosing != nil {
		lead.LikelihoodOfClosing = models.Likelihood(*in.LikelihoodOfClosing)
	}
	if in.EngagementLevel != nil {
		lead.EngagementLevel = *in.EngagementLevel
	}
	if in.LastContact != nil {
		lead.LastContact = in.LastContact
	}
	if in.NextStep != nil {
		lead.NextStep = *in.NextStep
	}
	if in.Notes != nil {
		lead.Notes = *in.Notes
	}
	if in.InterestTags != nil {
		lead.InterestTags = *in.InterestTags
	}
	if in.HowHeard != nil {
		lead.HowHeard = *in.HowHeard
	}
}

// CreateLead adds a lead manually. Stage defaults to prospect.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errNameRequired)
	}

	lead := models.Lead{
		Stage:        models.StageProspect,
		InterestTags: []string{},
		Source:       models.SourceManual,
	}
	input.apply(&lead)

	if err := lc.DB.Create(&lead).Error; err != nil {
		utils.LogError("lead_create", err, map[string]interface{}{"name": lead.Name})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	publish(lc.Events, EntityLead, ActionCreated, lead.ID)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads returns paginated leads filtered by search and stage. Search uses
// the same matcher as the pipeline board, so tags match on their values.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	page, limit, offset := utils.Pagination(c)

	query := lc.DB.Model(&models.Lead{})
	if stage := c.Query("stage"); stage != "" {
		if !models.LeadStage(stage).Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid stage", nil)
		}
		query = query.Where("stage = ?", stage)
	}

	search := strings.TrimSpace(c.Query("search"))
	if search != "" {
		var all []models.Lead
		if err := query.Order("updated_at DESC").Find(&all).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
		}
		matched := make([]models.Lead, 0, len(all))
		for _, lead := range all {
			if utils.MatchesLeadSearch(lead, search) {
				matched = append(matched, lead)
			}
		}
		leads := matched[min(offset, len(matched)):min(offset+limit, len(matched))]
		return c.JSON(utils.PaginatedResponse{
			Data:  leads,
			Total: int64(len(matched)),
			Page:  page,
			Limit: limit,
		})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var leads []models.Lead
	if err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetPipeline returns leads grouped by stage for the board view
func (lc *LeadController) GetPipeline(c *fiber.Ctx) error {
	var leads []models.Lead
	if err := lc.DB.Order("updated_at DESC").Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	stages := models.LeadStages
	if c.QueryBool("active_only", false) {
		stages = utils.ActivePipelineStages
		// hidden stages are left out, not reported as unknown
		shown := make(map[models.LeadStage]bool, len(stages))
		for _, s := range stages {
			shown[s] = true
		}
		kept := leads[:0]
		for _, lead := range leads {
			if shown[lead.Stage] || !lead.Stage.Valid() {
				kept = append(kept, lead)
			}
		}
		leads = kept
	}

	return c.JSON(utils.SuccessResponse(utils.GroupPipeline(leads, stages, c.Query("search"))))
}

// GetLead returns a lead with its email history
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "lead")
	}

	var lead models.Lead
	if err := lc.DB.Preload("Emails", func(db *gorm.DB) *gorm.DB {
		return db.Order("occurred_at DESC")
	}).First(&lead, id).Error; err != nil {
		return fetchError(c, err, "Lead")
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLead applies a partial update, including stage moves on the board
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "lead")
	}

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := lc.DB.First(&lead, id).Error; err != nil {
		return fetchError(c, err, "Lead")
	}

	input.apply(&lead)
	if lead.Name == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", errNameRequired)
	}

	if err := lc.DB.Save(&lead).Error; err != nil {
		utils.LogError("lead_update", err, map[string]interface{}{"lead_id": id})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	publish(lc.Events, EntityLead, ActionUpdated, lead.ID)
	return c.JSON(utils.SuccessResponse(lead))
}

// DeleteLead removes a lead and its email history
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c, "id")
	if !ok {
		return invalidID(c, "lead")
	}

	var lead models.Lead
	if err := lc.DB.First(&lead, id).Error; err != nil {
		return fetchError(c, err, "Lead")
	}

	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lead_id = ?", id).Delete(&models.LeadEmailHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&lead).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}

	publish(lc.Events, EntityLead, ActionDeleted, lead.ID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Lead deleted successfully"}))
}

// ClearLeads removes every lead. Used to reset test data.
func (lc *LeadController) ClearLeads(c *fiber.Ctx) error {
	var deleted int64
	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.LeadEmailHistory{}).Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Lead{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		utils.LogError("lead_bulk_clear", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear leads", err)
	}

	lc.Logger.WithField("deleted", deleted).Warn("Cleared all leads")
	publish(lc.Events, EntityLead, ActionCleared, 0)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": deleted}))
}

// ExportLeads exports leads to CSV in the same column layout the importer reads
func (lc *LeadController) ExportLeads(c *fiber.Ctx) error {
	var leads []models.Lead
	if err := lc.DB.Order("name ASC").Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=leads_export_"+time.Now().Format("20060102")+".csv")

	writer := csv.NewWriter(c)
	header := []string{"Name", "Email", "Company", "Phone", "Stage", "Interest Tags", "Likelihood", "Next Step"}
	if err := writer.Write(header); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}

	for _, lead := range leads {
		record := []string{
			lead.Name,
			lead.Email,
			lead.Company,
			lead.Phone,
			string(lead.Stage),
			strings.Join(lead.InterestTags, ";"),
			string(lead.LikelihoodOfClosing),
			lead.NextStep,
		}
		if err := writer.Write(record); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
