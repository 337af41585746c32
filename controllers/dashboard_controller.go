package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salesdesk/models"
	"salesdesk/utils"
)

const renewalWindow = 30 * 24 * time.Hour

type DashboardController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewDashboardController(db *gorm.DB, logger *logrus.Entry) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

type RenewalSummary struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	RenewalDate time.Time `json:"renewal_date"`
	DaysLeft    int       `json:"days_left"`
}

type DashboardStats struct {
	TotalClients      int64                       `json:"total_clients"`
	ClientsByRisk     map[models.RiskLevel]int64  `json:"clients_by_risk"`
	UpcomingRenewals  []RenewalSummary            `json:"upcoming_renewals"`
	TotalLeads        int64                       `json:"total_leads"`
	LeadsByStage      map[models.LeadStage]int64  `json:"leads_by_stage"`
	OutstandingAmount float64                     `json:"outstanding_amount"`
	Aging             utils.AgingReport           `json:"aging"`
	TasksByStatus     map[models.TaskStatus]int64 `json:"tasks_by_status"`
	OpenTasks         int64                       `json:"open_tasks"`
	OverdueTasks      int64                       `json:"overdue_tasks"`
	TotalReports      int64                       `json:"total_reports"`
	GeneratedAt       time.Time                   `json:"generated_at"`
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func (dc *DashboardController) countBy(model interface{}, column string) (map[string]int64, int64, error) {
	var rows []groupCount
	err := dc.DB.Model(model).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make(map[string]int64, len(rows))
	var total int64
	for _, r := range rows {
		out[r.GroupKey] = r.Count
		total += r.Count
	}
	return out, total, nil
}

// GetDashboardStats returns the numbers behind the dashboard cards
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	now := time.Now()
	stats := DashboardStats{
		ClientsByRisk:    map[models.RiskLevel]int64{},
		LeadsByStage:     map[models.LeadStage]int64{},
		TasksByStatus:    map[models.TaskStatus]int64{},
		UpcomingRenewals: []RenewalSummary{},
		GeneratedAt:      now.UTC(),
	}

	risk, total, err := dc.countBy(&models.Client{}, "risk_level")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count clients", err)
	}
	stats.TotalClients = total
	for k, v := range risk {
		stats.ClientsByRisk[models.RiskLevel(k)] = v
	}

	var renewals []models.Client
	if err := dc.DB.Where("renewal_date IS NOT NULL AND renewal_date >= ? AND renewal_date <= ?", now, now.Add(renewalWindow)).
		Order("renewal_date ASC").Find(&renewals).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch renewals", err)
	}
	for _, cl := range renewals {
		stats.UpcomingRenewals = append(stats.UpcomingRenewals, RenewalSummary{
			ID:          cl.ID,
			Name:        cl.Name,
			Company:     cl.Company,
			RenewalDate: *cl.RenewalDate,
			DaysLeft:    int(cl.RenewalDate.Sub(now).Hours() / 24),
		})
	}

	stages, total, err := dc.countBy(&models.Lead{}, "stage")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}
	stats.TotalLeads = total
	for _, s := range models.LeadStages {
		stats.LeadsByStage[s] = stages[string(s)]
	}

	var invoices []models.Invoice
	if err := dc.DB.Find(&invoices).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invoices", err)
	}
	stats.Aging = utils.BucketInvoices(invoices, utils.AgingOptions{
		Now:         now,
		ExcludePaid: true,
		Basis:       utils.AgingFromSentDate,
	})
	stats.OutstandingAmount = stats.Aging.TotalAmount

	tasks, _, err := dc.countBy(&models.Task{}, "status")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count tasks", err)
	}
	for k, v := range tasks {
		status := models.TaskStatus(k)
		stats.TasksByStatus[status] = v
		if status != models.TaskCompleted {
			stats.OpenTasks += v
		}
	}
	if err := dc.DB.Model(&models.Task{}).
		Where("status <> ? AND due_date IS NOT NULL AND due_date < ?", models.TaskCompleted, now).
		Count(&stats.OverdueTasks).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count tasks", err)
	}

	if err := dc.DB.Model(&models.ContentReport{}).Count(&stats.TotalReports).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count reports", err)
	}

	return c.JSON(utils.SuccessResponse(stats))
}
