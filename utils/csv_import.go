package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/badoux/checkmail"

	"salesdesk/models"
)

// ImportRowError describes a CSV row that was skipped. Row is 1-based and
// counts the header, so it matches what a spreadsheet shows.
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// InvoiceRow is one parsed line of the accounts-receivable export.
type InvoiceRow struct {
	Row             int
	OpportunityName string
	AccountName     string
	Amount          float64
	DaysOverdue     int
	Note            string
}

// SentDate derives the sent date from days overdue relative to now.
func (r InvoiceRow) SentDate(now time.Time) time.Time {
	return now.AddDate(0, 0, -r.DaysOverdue)
}

var (
	prospectColumns = []string{"name", "email", "company", "phone", "stage", "interest tags"}
	invoiceColumns  = []string{"opportunity name", "account name", "invoice amount", "days overdue", "a/r and invoicing note"}
)

// ParseProspectsCSV reads Name,Email,Company,Phone,Stage,Interest Tags rows.
// Tags are semicolon separated. Rows with a bad email or stage are reported and skipped.
func ParseProspectsCSV(r io.Reader) ([]models.Lead, []ImportRowError, error) {
	records, cols, err := readCSV(r, prospectColumns, []string{"name"})
	if err != nil {
		return nil, nil, err
	}

	var leads []models.Lead
	var rowErrors []ImportRowError
	for i, rec := range records {
		rowNum := i + 2
		get := func(col string) string { return field(rec, cols, col) }

		name := get("name")
		if name == "" {
			rowErrors = append(rowErrors, ImportRowError{Row: rowNum, Reason: "name is required"})
			continue
		}

		email := strings.ToLower(get("email"))
		if email != "" {
			if err := checkmail.ValidateFormat(email); err != nil {
				rowErrors = append(rowErrors, ImportRowError{Row: rowNum, Reason: "invalid email " + email})
				continue
			}
		}

		stage, ok := ParseLeadStage(get("stage"))
		if !ok {
			rowErrors = append(rowErrors, ImportRowError{Row: rowNum, Reason: "unknown stage " + get("stage")})
			continue
		}

		leads = append(leads, models.Lead{
			Name:         name,
			Email:        email,
			Company:      get("company"),
			Phone:        get("phone"),
			Stage:        stage,
			InterestTags: SplitTags(get("interest tags"), ";"),
			Source:       "csv",
		})
	}
	return leads, rowErrors, nil
}

// ParseInvoicesCSV reads the Opportunity Name,Account Name,Invoice Amount,Days
// Overdue,A/R And Invoicing Note export. Malformed rows are reported and skipped.
func ParseInvoicesCSV(r io.Reader) ([]InvoiceRow, []ImportRowError, error) {
	records, cols, err := readCSV(r, invoiceColumns, []string{"account name", "invoice amount"})
	if err != nil {
		return nil, nil, err
	}

	var rows []InvoiceRow
	var rowErrors []ImportRowError
	for i, rec := range records {
		rowNum := i + 2
		get := func(col string) string { return field(rec, cols, col) }

		account := get("account name")
		if account == "" {
			rowErrors = append(rowErrors, ImportRowError{Row: rowNum, Reason: "account name is required"})
			continue
		}

		amount, err := ParseAmount(get("invoice amount"))
		if err != nil {
			rowErrors = append(rowErrors, ImportRowError{Row: rowNum, Reason: err.Error()})
			continue
		}

		days := 0
		if raw := get("days overdue"); raw != "" {
			days, err = strconv.Atoi(raw)
			if err != nil {
				rowErrors = append(rowErrors, ImportRowError{Row: rowNum, Reason: "days overdue must be an integer"})
				continue
			}
		}

		rows = append(rows, InvoiceRow{
			Row:             rowNum,
			OpportunityName: get("opportunity name"),
			AccountName:     account,
			Amount:          amount,
			DaysOverdue:     days,
			Note:            get("a/r and invoicing note"),
		})
	}
	return rows, rowErrors, nil
}

// ParseLeadStage normalises "Closed Won", "closed-won" etc. Empty means prospect.
func ParseLeadStage(raw string) (models.LeadStage, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return models.StageProspect, true
	}
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	stage := models.LeadStage(s)
	return stage, stage.Valid()
}

// ParseAmount accepts plain decimals with an optional currency sign and thousands separators.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, errors.New("invoice amount is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid invoice amount %q", raw)
	}
	if !validAmount(v) {
		return 0, fmt.Errorf("invoice amount must be a non-negative number, got %q", raw)
	}
	return v, nil
}

// SplitTags splits and trims a delimited tag list, dropping empty entries.
func SplitTags(raw, sep string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, sep) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func readCSV(r io.Reader, known, required []string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, errors.New("CSV file must have at least a header and one row")
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, k := range known {
			if h == k {
				cols[k] = i
			}
		}
	}
	for _, req := range required {
		if _, ok := cols[req]; !ok {
			return nil, nil, fmt.Errorf("CSV header is missing column %q", req)
		}
	}
	return records[1:], cols, nil
}

func field(rec []string, cols map[string]int, col string) string {
	i, ok := cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
