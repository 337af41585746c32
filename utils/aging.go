package utils

import (
	"math"
	"time"

	"salesdesk/models"
)

// Aging bucket labels, in order.
const (
	Bucket0To29  = "0-29"
	Bucket30To59 = "30-59"
	Bucket60To89 = "60-89"
	Bucket90Plus = "90+"
)

// AgingBasis selects which invoice date days overdue are counted from.
type AgingBasis string

const (
	AgingFromSentDate AgingBasis = "sent"
	AgingFromDueDate  AgingBasis = "due"
)

type AgingOptions struct {
	Now         time.Time
	ExcludePaid bool
	Basis       AgingBasis
}

type AgingBucket struct {
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type AgingReport struct {
	Buckets      []AgingBucket `json:"buckets"`
	TotalCount   int           `json:"total_count"`
	TotalAmount  float64       `json:"total_amount"`
	Excluded     int           `json:"excluded"`      // no reference date
	ExcludedPaid int           `json:"excluded_paid"` // paid or written off
	Skipped      int           `json:"skipped"`       // malformed amount
	AsOf         time.Time     `json:"as_of"`
}

// Bucket returns the bucket with the given label, or nil.
func (r AgingReport) Bucket(label string) *AgingBucket {
	for i := range r.Buckets {
		if r.Buckets[i].Label == label {
			return &r.Buckets[i]
		}
	}
	return nil
}

// DaysBetween returns floor((now - ref) / 24h). Negative when ref is in the future.
func DaysBetween(ref, now time.Time) int {
	return int(math.Floor(now.Sub(ref).Hours() / 24))
}

// AgingBucketIndex maps days overdue onto the four fixed buckets.
func AgingBucketIndex(days int) int {
	switch {
	case days <= 29:
		return 0
	case days <= 59:
		return 1
	case days <= 89:
		return 2
	default:
		return 3
	}
}

// ReferenceDate returns the date aging is measured from for the given basis.
func ReferenceDate(inv models.Invoice, basis AgingBasis) *time.Time {
	if basis == AgingFromDueDate {
		return inv.DueDate
	}
	return inv.SentDate
}

// DaysOverdue computes the integer days overdue for an invoice, or nil when the
// reference date is missing.
func DaysOverdue(inv models.Invoice, basis AgingBasis, now time.Time) *int {
	ref := ReferenceDate(inv, basis)
	if ref == nil {
		return nil
	}
	days := DaysBetween(*ref, now)
	return &days
}

// BucketInvoices sorts invoices into the 0-29/30-59/60-89/90+ buckets. Rows
// without a reference date or with a malformed amount are counted and left out.
func BucketInvoices(invoices []models.Invoice, opts AgingOptions) AgingReport {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	labels := []string{Bucket0To29, Bucket30To59, Bucket60To89, Bucket90Plus}
	var cents [4]int64
	report := AgingReport{AsOf: now}
	report.Buckets = make([]AgingBucket, len(labels))
	for i, label := range labels {
		report.Buckets[i].Label = label
	}

	var totalCents int64
	for _, inv := range invoices {
		if opts.ExcludePaid && inv.Status.Settled() {
			report.ExcludedPaid++
			continue
		}
		if !validAmount(inv.Amount) {
			report.Skipped++
			continue
		}
		ref := ReferenceDate(inv, opts.Basis)
		if ref == nil {
			report.Excluded++
			continue
		}

		idx := AgingBucketIndex(DaysBetween(*ref, now))
		amount := toCents(inv.Amount)
		report.Buckets[idx].Count++
		cents[idx] += amount
		report.TotalCount++
		totalCents += amount
	}

	for i := range report.Buckets {
		report.Buckets[i].Amount = fromCents(cents[i])
	}
	report.TotalAmount = fromCents(totalCents)
	return report
}

func validAmount(a float64) bool {
	return !math.IsNaN(a) && !math.IsInf(a, 0) && a >= 0
}

func toCents(a float64) int64 {
	return int64(math.Round(a * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}
