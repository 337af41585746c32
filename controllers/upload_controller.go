package controller

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

const (
	ImportProspects = "prospects"
	ImportInvoices  = "invoices"
)

const maxCSVSize = 10 << 20

// ErrInvalidCSV wraps header and format errors in an uploaded file.
var ErrInvalidCSV = errors.New("invalid CSV")

// ImportResult summarises a CSV import. Row errors are not fatal.
type ImportResult struct {
	Type           string                 `json:"type"`
	Created        int                    `json:"created"`
	ClientsCreated int                    `json:"clients_created,omitempty"`
	Duplicates     int                    `json:"duplicates,omitempty"`
	Errors         []utils.ImportRowError `json:"errors"`
}

// ImportProspectsCSV creates leads from a prospects export. Leads whose email
// already exists are counted as duplicates and left untouched.
func ImportProspectsCSV(db *gorm.DB, r io.Reader) (*ImportResult, error) {
	leads, rowErrors, err := utils.ParseProspectsCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	result := &ImportResult{Type: ImportProspects, Errors: rowErrors}
	if result.Errors == nil {
		result.Errors = []utils.ImportRowError{}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		seen := map[string]bool{}
		for i := range leads {
			lead := &leads[i]
			if lead.Email != "" {
				if seen[lead.Email] {
					result.Duplicates++
					continue
				}
				seen[lead.Email] = true

				var count int64
				if err := tx.Model(&models.Lead{}).Where("email = ?", lead.Email).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					result.Duplicates++
					continue
				}
			}
			if err := tx.Create(lead).Error; err != nil {
				return err
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ImportInvoicesCSV creates invoices from an accounts-receivable export.
// Clients are matched by account name (case-insensitive) and created when
// missing. The sent date is now minus the row's days overdue.
func ImportInvoicesCSV(db *gorm.DB, r io.Reader, now time.Time) (*ImportResult, error) {
	rows, rowErrors, err := utils.ParseInvoicesCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	result := &ImportResult{Type: ImportInvoices, Errors: rowErrors}
	if result.Errors == nil {
		result.Errors = []utils.ImportRowError{}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		clients := map[string]uint{}
		for _, row := range rows {
			key := strings.ToLower(row.AccountName)
			clientID, ok := clients[key]
			if !ok {
				var client models.Client
				err := tx.Where("LOWER(name) = ?", key).First(&client).Error
				switch {
				case err == nil:
				case errors.Is(err, gorm.ErrRecordNotFound):
					client = models.Client{Name: row.AccountName, RiskLevel: models.RiskMedium, InterestTags: []string{}}
					if err := tx.Create(&client).Error; err != nil {
						return err
					}
					result.ClientsCreated++
				default:
					return err
				}
				clientID = client.ID
				clients[key] = clientID
			}

			sent := row.SentDate(now)
			invoice := models.Invoice{
				ClientID:      clientID,
				InvoiceNumber: importInvoiceNumber(now),
				Amount:        row.Amount,
				SentDate:      &sent,
				Status:        models.InvoicePending,
				Opportunity:   row.OpportunityName,
				Notes:         row.Note,
			}
			if err := tx.Create(&invoice).Error; err != nil {
				return fmt.Errorf("row %d: %w", row.Row, err)
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func importInvoiceNumber(now time.Time) string {
	return "IMP-" + now.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

type UploadController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events EventPublisher
}

func NewUploadController(db *gorm.DB, logger *logrus.Entry, events EventPublisher) *UploadController {
	return &UploadController{
		DB:     db,
		Logger: logger,
		Events: events,
	}
}

// UploadCSV imports a prospects or invoices CSV sent as multipart field "file"
func (uc *UploadController) UploadCSV(c *fiber.Ctx) error {
	importType := c.FormValue("type", c.Query("type"))
	if importType != ImportProspects && importType != ImportInvoices {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "type must be prospects or invoices", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No file uploaded", err)
	}
	if file.Size > maxCSVSize {
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "File is too large", nil)
	}

	f, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read upload", err)
	}
	defer f.Close()

	var result *ImportResult
	if importType == ImportProspects {
		result, err = ImportProspectsCSV(uc.DB, f)
	} else {
		result, err = ImportInvoicesCSV(uc.DB, f, time.Now())
	}
	if errors.Is(err, ErrInvalidCSV) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid CSV", err)
	}
	if err != nil {
		utils.LogError("csv_import", err, map[string]interface{}{"type": importType, "filename": file.Filename})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import CSV", err)
	}

	uc.Logger.WithFields(logrus.Fields{
		"type":    importType,
		"created": result.Created,
		"errors":  len(result.Errors),
	}).Info("CSV imported")

	if importType == ImportProspects {
		publish(uc.Events, EntityLead, ActionImported, 0)
	} else {
		publish(uc.Events, EntityInvoice, ActionImported, 0)
		if result.ClientsCreated > 0 {
			publish(uc.Events, EntityClient, ActionImported, 0)
		}
	}
	return c.JSON(utils.SuccessResponse(result))
}
