package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/ai"
	"salesdesk/utils"
)

// AIController exposes the generation tools. Every request is validated
// before the provider is called.
type AIController struct {
	AI     *ai.Service
	Logger *logrus.Entry
}

func NewAIController(aiService *ai.Service, logger *logrus.Entry) *AIController {
	return &AIController{
		AI:     aiService,
		Logger: logger,
	}
}

// aiError maps tool errors onto responses.
func aiError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ai.ErrProviderNotConfigured):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "AI provider is not configured", nil)
	case errors.Is(err, ai.ErrGenerationFailed):
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Generation failed", err)
	case errors.Is(err, ai.ErrNoReports), errors.Is(err, ai.ErrNoLeads), errors.Is(err, ai.ErrEmptyReport):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Record not found", nil)
	default:
		utils.LogError("ai_request", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate content", err)
	}
}

// runTool parses and validates the request body into Req, then runs tool.
func runTool[Req any, Res any](c *fiber.Ctx, tool func(*fiber.Ctx, Req) (*ai.Generation[Res], error)) error {
	var req Req
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	gen, err := tool(c, req)
	if err != nil {
		return aiError(c, err)
	}
	return c.JSON(utils.SuccessResponse(gen))
}

func (ac *AIController) GenerateCallPrep(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.CallPrepRequest) (*ai.Generation[ai.CallPrepResult], error) {
		return ac.AI.GenerateCallPrep(c.UserContext(), req)
	})
}

func (ac *AIController) SuggestCampaigns(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.CampaignSuggestionRequest) (*ai.Generation[[]ai.ContentSuggestion], error) {
		return ac.AI.SuggestCampaigns(c.UserContext(), req)
	})
}

func (ac *AIController) GenerateCampaignEmail(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.CampaignEmailRequest) (*ai.Generation[ai.GeneratedEmail], error) {
		return ac.AI.GenerateCampaignEmail(c.UserContext(), req)
	})
}

func (ac *AIController) TrackThemes(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.ThemeTrackingRequest) (*ai.Generation[[]ai.Theme], error) {
		return ac.AI.TrackThemes(c.UserContext(), req)
	})
}

func (ac *AIController) GenerateThemeEmail(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.ThemeEmailRequest) (*ai.Generation[ai.GeneratedEmail], error) {
		return ac.AI.GenerateThemeEmail(c.UserContext(), req)
	})
}

func (ac *AIController) ScoreLeads(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.LeadScoringRequest) (*ai.Generation[[]ai.LeadScore], error) {
		return ac.AI.ScoreLeads(c.UserContext(), req)
	})
}

func (ac *AIController) MatchProspectFunds(c *fiber.Ctx) error {
	return runTool(c, func(c *fiber.Ctx, req ai.FundMatchRequest) (*ai.Generation[[]ai.FundMatch], error) {
		return ac.AI.MatchProspectFunds(c.UserContext(), req)
	})
}
