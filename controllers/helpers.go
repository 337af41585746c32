package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"salesdesk/utils"
)

// Entity names used in change events.
const (
	EntityClient        = "client"
	EntityLead          = "lead"
	EntityInvoice       = "invoice"
	EntityContentReport = "content_report"
	EntityReportSummary = "report_summary"
	EntityTask          = "task"
	EntityFeedback      = "feedback"
	EntityEmail         = "email_history"
)

const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionCleared  = "cleared"
	ActionImported = "imported"
)

// fetchError maps a lookup error to 404 or 500.
func fetchError(c *fiber.Ctx, err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, what+" not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch "+strings.ToLower(what), err)
}

func invalidID(c *fiber.Ctx, what string) error {
	return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid "+what+" ID", nil)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likePattern builds a case-insensitive LIKE argument with wildcards in the
// term escaped. Pair it with likeAny, which declares the escape character.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// likeAny matches one pattern against several columns, lower-cased.
func likeAny(db *gorm.DB, pattern string, columns ...string) *gorm.DB {
	conds := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		conds[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	return db.Where(strings.Join(conds, " OR "), args...)
}

// parseDateParam accepts RFC 3339 or YYYY-MM-DD.
func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

var errNameRequired = errors.New("name is required")
