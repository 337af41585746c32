package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdesk/models"
)

func TestParseProspectsCSV(t *testing.T) {
	input := "Name,Email,Company,Phone,Stage,Interest Tags\n" +
		"John Doe,john@example.com,Acme,555-0100,qualified,technology;fintech\n" +
		"Jane Roe,JANE@example.com,Beta,,,\n" +
		"Bad Email,not-an-email,Gamma,,prospect,\n" +
		"Bad Stage,bad@example.com,Delta,,negotiating,\n" +
		",nobody@example.com,,,,\n" +
		"Won Deal,won@example.com,Eps,,Closed Won, gold ; ;silver \n"

	leads, rowErrors, err := ParseProspectsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, leads, 3)

	john := leads[0]
	assert.Equal(t, "John Doe", john.Name)
	assert.Equal(t, "john@example.com", john.Email)
	assert.Equal(t, "Acme", john.Company)
	assert.Equal(t, "555-0100", john.Phone)
	assert.Equal(t, models.StageQualified, john.Stage)
	assert.Equal(t, []string{"technology", "fintech"}, []string(john.InterestTags))
	assert.Equal(t, "csv", john.Source)

	assert.Equal(t, models.StageProspect, leads[1].Stage)
	assert.Equal(t, "jane@example.com", leads[1].Email)
	assert.Empty(t, leads[1].InterestTags)

	assert.Equal(t, models.StageClosedWon, leads[2].Stage)
	assert.Equal(t, []string{"gold", "silver"}, []string(leads[2].InterestTags))

	require.Len(t, rowErrors, 3)
	assert.Equal(t, 4, rowErrors[0].Row)
	assert.Contains(t, rowErrors[0].Reason, "invalid email")
	assert.Equal(t, 5, rowErrors[1].Row)
	assert.Contains(t, rowErrors[1].Reason, "unknown stage")
	assert.Equal(t, 6, rowErrors[2].Row)
}

func TestParseProspectsCSVHeaderCaseAndBOM(t *testing.T) {
	input := "\ufeffname,EMAIL,company\nAlice,alice@example.com,Acme\n"

	leads, rowErrors, err := ParseProspectsCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, leads, 1)
	assert.Equal(t, "Alice", leads[0].Name)
	assert.Equal(t, "alice@example.com", leads[0].Email)
}

func TestParseProspectsCSVMissingColumn(t *testing.T) {
	_, _, err := ParseProspectsCSV(strings.NewReader("Email,Company\na@b.com,Acme\n"))
	assert.Error(t, err)

	_, _, err = ParseProspectsCSV(strings.NewReader("Name,Email\n"))
	assert.Error(t, err)
}

func TestParseInvoicesCSV(t *testing.T) {
	input := "Opportunity Name,Account Name,Invoice Amount,Days Overdue,A/R And Invoicing Note\n" +
		"Renewal 2024,Acme Capital,\"$12,500.50\",45,Chased twice\n" +
		"New seat,Beta Fund,800,,\n" +
		"Broken,Gamma,abc,10,\n" +
		"Broken days,Delta,100,ten,\n" +
		"No account,,100,1,\n"

	rows, rowErrors, err := ParseInvoicesCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, InvoiceRow{
		Row:             2,
		OpportunityName: "Renewal 2024",
		AccountName:     "Acme Capital",
		Amount:          12500.50,
		DaysOverdue:     45,
		Note:            "Chased twice",
	}, rows[0])
	assert.Equal(t, 0, rows[1].DaysOverdue)

	require.Len(t, rowErrors, 3)
	assert.Equal(t, []int{4, 5, 6}, []int{rowErrors[0].Row, rowErrors[1].Row, rowErrors[2].Row})

	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), rows[0].SentDate(now))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "100", want: 100},
		{raw: " $1,234.56 ", want: 1234.56},
		{raw: "0", want: 0},
		{raw: "", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "1e400", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "raw=%q", tt.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseLeadStage(t *testing.T) {
	tests := map[string]models.LeadStage{
		"":            models.StageProspect,
		"Qualified":   models.StageQualified,
		"closed-lost": models.StageClosedLost,
		"Closed Won":  models.StageClosedWon,
	}
	for raw, want := range tests {
		got, ok := ParseLeadStage(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got)
	}

	_, ok := ParseLeadStage("won")
	assert.False(t, ok)
}
