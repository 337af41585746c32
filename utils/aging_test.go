package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdesk/models"
)

var agingNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := agingNow.AddDate(0, 0, -n)
	return &t
}

func TestBucketInvoicesScenario(t *testing.T) {
	invoices := []models.Invoice{
		{InvoiceNumber: "INV-1", Amount: 5000, SentDate: daysAgo(45), Status: models.InvoicePending},
	}

	report := BucketInvoices(invoices, AgingOptions{Now: agingNow, ExcludePaid: true})

	bucket := report.Bucket(Bucket30To59)
	require.NotNil(t, bucket)
	assert.Equal(t, 1, bucket.Count)
	assert.Equal(t, 5000.0, bucket.Amount)
	assert.Equal(t, 0, report.Bucket(Bucket0To29).Count)
	assert.Equal(t, 1, report.TotalCount)
	assert.Equal(t, 5000.0, report.TotalAmount)
}

func TestAgingBucketBoundaries(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{-10, Bucket0To29},
		{0, Bucket0To29},
		{29, Bucket0To29},
		{30, Bucket30To59},
		{59, Bucket30To59},
		{60, Bucket60To89},
		{89, Bucket60To89},
		{90, Bucket90Plus},
		{400, Bucket90Plus},
	}
	labels := []string{Bucket0To29, Bucket30To59, Bucket60To89, Bucket90Plus}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labels[AgingBucketIndex(tt.days)], "days=%d", tt.days)
	}
}

func TestDaysBetweenFloors(t *testing.T) {
	ref := agingNow.Add(-(30*24*time.Hour - time.Minute))
	assert.Equal(t, 29, DaysBetween(ref, agingNow))
	assert.Equal(t, -1, DaysBetween(agingNow.Add(time.Hour), agingNow))
}

func TestBucketInvoicesExclusions(t *testing.T) {
	invoices := []models.Invoice{
		{Amount: 100, SentDate: daysAgo(5), Status: models.InvoicePending},
		{Amount: 200, SentDate: daysAgo(70), Status: models.InvoicePartial},
		{Amount: 300, SentDate: daysAgo(100), Status: models.InvoicePaid},
		{Amount: 400, SentDate: daysAgo(100), Status: models.InvoiceWrittenOff},
		// no sent date
		{Amount: 500, Status: models.InvoicePending},
		// malformed amounts
		{Amount: math.NaN(), SentDate: daysAgo(1), Status: models.InvoicePending},
		{Amount: -20, SentDate: daysAgo(1), Status: models.InvoicePending},
		{Amount: math.Inf(1), SentDate: daysAgo(1), Status: models.InvoicePending},
		// cents, one sent in the future
		{Amount: 0.1, SentDate: daysAgo(-3), Status: models.InvoicePending},
		{Amount: 0.2, SentDate: daysAgo(3), Status: models.InvoicePending},
	}

	report := BucketInvoices(invoices, AgingOptions{Now: agingNow, ExcludePaid: true})

	assert.Equal(t, 2, report.ExcludedPaid)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, 3, report.Skipped)

	var count int
	var amount float64
	for _, b := range report.Buckets {
		count += b.Count
		amount += b.Amount
	}
	assert.Equal(t, len(invoices)-report.Excluded-report.Skipped-report.ExcludedPaid, count)
	assert.Equal(t, count, report.TotalCount)
	assert.InDelta(t, 300.3, amount, 1e-9)
	assert.Equal(t, 300.3, report.TotalAmount)
	assert.Equal(t, 100.3, report.Bucket(Bucket0To29).Amount)
	assert.Equal(t, 200.0, report.Bucket(Bucket60To89).Amount)
}

func TestBucketInvoicesIncludePaid(t *testing.T) {
	invoices := []models.Invoice{
		{Amount: 300, SentDate: daysAgo(100), Status: models.InvoicePaid},
	}
	report := BucketInvoices(invoices, AgingOptions{Now: agingNow, ExcludePaid: false})
	assert.Equal(t, 0, report.ExcludedPaid)
	assert.Equal(t, 1, report.Bucket(Bucket90Plus).Count)
}

func TestBucketInvoicesDueBasis(t *testing.T) {
	invoices := []models.Invoice{
		{Amount: 10, SentDate: daysAgo(95), DueDate: daysAgo(65), Status: models.InvoicePending},
		{Amount: 20, SentDate: daysAgo(95), Status: models.InvoicePending},
	}
	report := BucketInvoices(invoices, AgingOptions{Now: agingNow, Basis: AgingFromDueDate})
	assert.Equal(t, 1, report.Bucket(Bucket60To89).Count)
	assert.Equal(t, 1, report.Excluded)
}

func TestBucketInvoicesEmpty(t *testing.T) {
	report := BucketInvoices(nil, AgingOptions{Now: agingNow})
	require.Len(t, report.Buckets, 4)
	assert.Zero(t, report.TotalCount)
	assert.Zero(t, report.TotalAmount)
}

func TestDaysOverdue(t *testing.T) {
	inv := models.Invoice{SentDate: daysAgo(12)}
	days := DaysOverdue(inv, AgingFromSentDate, agingNow)
	require.NotNil(t, days)
	assert.Equal(t, 12, *days)

	assert.Nil(t, DaysOverdue(inv, AgingFromDueDate, agingNow))
}
