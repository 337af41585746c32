package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/metrics"
	"salesdesk/models"
	"salesdesk/utils"
)

const initialSyncWindow = 30 * 24 * time.Hour

var ErrInboxNotConfigured = errors.New("inbox sync is not configured")

// SyncResult counts what one inbox pass did with the fetched messages.
type SyncResult struct {
	Fetched    int `json:"fetched"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
	Unmatched  int `json:"unmatched"`
}

// InboxSyncer files received replies into invoice or lead email history.
// Replies are matched by In-Reply-To first, then by sender address.
type InboxSyncer struct {
	DB      *gorm.DB
	Fetcher utils.InboxFetcher
	Events  EventPublisher
	Logger  *logrus.Entry
	Now     func() time.Time

	mu sync.Mutex
}

func NewInboxSyncer(db *gorm.DB, fetcher utils.InboxFetcher, events EventPublisher, logger *logrus.Entry) *InboxSyncer {
	return &InboxSyncer{
		DB:      db,
		Fetcher: fetcher,
		Events:  events,
		Logger:  logger,
		Now:     time.Now,
	}
}

// since returns the newest received timestamp already stored, or the initial
// window when nothing has been synced yet.
func (s *InboxSyncer) since() (time.Time, error) {
	var latest time.Time

	var invoiceEmail models.EmailHistory
	err := s.DB.Where("direction = ?", models.DirectionReceived).Order("occurred_at DESC").Take(&invoiceEmail).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, err
	}
	latest = invoiceEmail.OccurredAt

	var leadEmail models.LeadEmailHistory
	err = s.DB.Where("direction = ?", models.DirectionReceived).Order("occurred_at DESC").Take(&leadEmail).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, err
	}
	if leadEmail.OccurredAt.After(latest) {
		latest = leadEmail.OccurredAt
	}

	if latest.IsZero() {
		return s.Now().Add(-initialSyncWindow), nil
	}
	return latest, nil
}

// Sync runs one pass. Concurrent calls are serialised.
func (s *InboxSyncer) Sync(ctx context.Context) (*SyncResult, error) {
	if s == nil || s.Fetcher == nil {
		return nil, ErrInboxNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	since, err := s.since()
	if err != nil {
		return nil, err
	}

	messages, err := s.Fetcher.FetchSince(ctx, since)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Fetched: len(messages)}
	for _, msg := range messages {
		stored, err := s.file(msg)
		if err != nil {
			return result, err
		}
		switch stored {
		case fileStored:
			result.Stored++
		case fileDuplicate:
			result.Duplicates++
		case fileUnmatched:
			result.Unmatched++
		}
	}

	metrics.InboxSynced.Add(float64(result.Stored))
	s.Logger.WithFields(logrus.Fields{
		"fetched":    result.Fetched,
		"stored":     result.Stored,
		"duplicates": result.Duplicates,
		"unmatched":  result.Unmatched,
	}).Info("Inbox sync complete")
	return result, nil
}

type fileOutcome int

const (
	fileStored fileOutcome = iota
	fileDuplicate
	fileUnmatched
)

// seen reports whether the message is already filed. Messages without a
// Message-ID are keyed on sender, subject and received time.
func (s *InboxSyncer) seen(msg utils.InboundEmail) (bool, error) {
	cond := map[string]interface{}{"message_id": msg.MessageID}
	if msg.MessageID == "" {
		cond = map[string]interface{}{
			"direction": models.DirectionReceived,
			"from":      msg.FromAddress,
			"subject":   msg.Subject,
		}
		if msg.Date.IsZero() {
			cond["body"] = msg.Body
		} else {
			cond["occurred_at"] = msg.Date
		}
	}
	for _, model := range []interface{}{&models.EmailHistory{}, &models.LeadEmailHistory{}} {
		var count int64
		if err := s.DB.Model(model).Where(cond).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *InboxSyncer) file(msg utils.InboundEmail) (fileOutcome, error) {
	dup, err := s.seen(msg)
	if err != nil || dup {
		return fileDuplicate, err
	}

	message := models.EmailMessage{
		Direction:  models.DirectionReceived,
		From:       msg.FromAddress,
		To:         msg.To,
		Subject:    msg.Subject,
		Body:       msg.Body,
		MessageID:  msg.MessageID,
		OccurredAt: msg.Date,
	}
	if message.OccurredAt.IsZero() {
		message.OccurredAt = s.Now()
	}

	invoiceID, leadID, err := s.match(msg)
	if err != nil {
		return fileUnmatched, err
	}

	switch {
	case invoiceID != 0:
		entry := models.EmailHistory{InvoiceID: invoiceID, EmailMessage: message}
		if err := s.DB.Create(&entry).Error; err != nil {
			return fileUnmatched, err
		}
		publish(s.Events, EntityEmail, ActionCreated, entry.ID)
	case leadID != 0:
		entry := models.LeadEmailHistory{LeadID: leadID, EmailMessage: message}
		if err := s.DB.Create(&entry).Error; err != nil {
			return fileUnmatched, err
		}
		if err := s.DB.Model(&models.Lead{}).Where("id = ?", leadID).Update("last_contact", message.OccurredAt).Error; err != nil {
			return fileUnmatched, err
		}
		publish(s.Events, EntityEmail, ActionCreated, entry.ID)
		publish(s.Events, EntityLead, ActionUpdated, leadID)
	default:
		s.Logger.WithFields(logrus.Fields{
			"from":    msg.FromAddress,
			"subject": msg.Subject,
		}).Debug("No invoice or lead matches inbound email")
		return fileUnmatched, nil
	}
	return fileStored, nil
}

func (s *InboxSyncer) match(msg utils.InboundEmail) (invoiceID, leadID uint, err error) {
	if msg.InReplyTo != "" {
		var sent models.EmailHistory
		err = s.DB.Where("message_id = ?", msg.InReplyTo).First(&sent).Error
		if err == nil {
			return sent.InvoiceID, 0, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, err
		}

		var leadSent models.LeadEmailHistory
		err = s.DB.Where("message_id = ?", msg.InReplyTo).First(&leadSent).Error
		if err == nil {
			return 0, leadSent.LeadID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, err
		}
	}

	from := strings.ToLower(strings.TrimSpace(msg.FromAddress))
	if from == "" {
		return 0, 0, nil
	}

	var lead models.Lead
	err = s.DB.Where("LOWER(email) = ?", from).Order("updated_at DESC").First(&lead).Error
	if err == nil {
		return 0, lead.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, err
	}

	var invoice models.Invoice
	err = s.DB.Joins("JOIN clients ON clients.id = invoices.client_id AND clients.deleted_at IS NULL").
		Where("LOWER(clients.email) = ?", from).
		Where("invoices.status NOT IN ?", []models.InvoiceStatus{models.InvoicePaid, models.InvoiceWrittenOff}).
		Order("invoices.sent_date DESC").
		First(&invoice).Error
	if err == nil {
		return invoice.ID, 0, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, err
	}
	return 0, 0, nil
}

type InboxController struct {
	Syncer *InboxSyncer
	Logger *logrus.Entry
}

func NewInboxController(syncer *InboxSyncer, logger *logrus.Entry) *InboxController {
	return &InboxController{
		Syncer: syncer,
		Logger: logger,
	}
}

// SyncInbox runs an inbox pass on demand
func (ic *InboxController) SyncInbox(c *fiber.Ctx) error {
	result, err := ic.Syncer.Sync(c.UserContext())
	if errors.Is(err, ErrInboxNotConfigured) {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Inbox sync is not configured", nil)
	}
	if err != nil {
		utils.LogError("inbox_sync", err, nil)
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Inbox sync failed", err)
	}
	return c.JSON(utils.SuccessResponse(result))
}
