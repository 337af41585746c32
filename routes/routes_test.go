package routes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"salesdesk/ai"
	"salesdesk/config"
	controller "salesdesk/controllers"
	"salesdesk/models"
	"salesdesk/utils"
)

type scriptedProvider struct {
	reply string
	err   error
}

func (p *scriptedProvider) Generate(context.Context, string, int) (string, error) {
	return p.reply, p.err
}

func (p *scriptedProvider) IsConfigured() bool { return true }

func newTestApp(t *testing.T, opts Options) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = config.CloseDB(db) })

	app := fiber.New()
	SetupRoutes(app, db, opts)
	return app, db
}

type apiResponse struct {
	status int
	body   []byte
}

func (r apiResponse) data(t *testing.T, v interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(r.body, &env), string(r.body))
	require.True(t, env.Success, string(r.body))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func (r apiResponse) errorMessage(t *testing.T) string {
	t.Helper()
	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(r.body, &env), string(r.body))
	assert.False(t, env.Success)
	return env.Error
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}, headers ...string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{status: resp.StatusCode, body: raw}
}

func TestHealthAndNotFound(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	resp := call(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"status":"ok","ai_configured":false}`, string(resp.body))

	resp = call(t, app, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "The requested resource was not found", resp.errorMessage(t))

	resp = call(t, app, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "salesdesk_http_requests_total")
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	const secret = "test-secret"
	app, _ := newTestApp(t, Options{AuthSecret: secret})

	resp := call(t, app, http.MethodGet, "/api/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = call(t, app, http.MethodGet, "/api/clients", nil, "Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	token, err := utils.GenerateJWTToken(secret, "1", "desk@example.com", time.Hour)
	require.NoError(t, err)
	resp = call(t, app, http.MethodGet, "/api/clients", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.status)

	resp = call(t, app, http.MethodGet, "/api/clients?token="+token, nil)
	assert.Equal(t, http.StatusOK, resp.status)

	// the webhook is verified by its signature, not a bearer token
	resp = call(t, app, http.MethodPost, "/api/payments/webhook", map[string]string{"type": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestClientLifecycle(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	resp := call(t, app, http.MethodPost, "/api/clients", map[string]interface{}{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = call(t, app, http.MethodPost, "/api/clients", map[string]interface{}{"name": "Acme", "risk_level": "extreme"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = call(t, app, http.MethodPost, "/api/clients", map[string]interface{}{
		"name":          "Acme Capital",
		"email":         "AP@Acme.com",
		"interest_tags": []string{"gold", "energy"},
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	var client models.Client
	resp.data(t, &client)
	assert.Equal(t, "ap@acme.com", client.Email)
	assert.Equal(t, models.RiskMedium, client.RiskLevel)

	resp = call(t, app, http.MethodPatch, fmt.Sprintf("/api/clients/%d", client.ID), map[string]interface{}{"risk_level": "high"})
	require.Equal(t, http.StatusOK, resp.status)
	var updated models.Client
	resp.data(t, &updated)
	assert.Equal(t, models.RiskHigh, updated.RiskLevel)
	assert.Equal(t, []string{"gold", "energy"}, []string(updated.InterestTags))

	resp = call(t, app, http.MethodGet, "/api/clients?search=acme&risk_level=high", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var page struct {
		Data  []models.Client `json:"data"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.body, &page))
	assert.EqualValues(t, 1, page.Total)

	resp = call(t, app, http.MethodPost, "/api/invoices", map[string]interface{}{
		"client_id": client.ID, "invoice_number": "INV-1", "amount": 100,
	})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = call(t, app, http.MethodDelete, fmt.Sprintf("/api/clients/%d", client.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.status)

	resp = call(t, app, http.MethodDelete, "/api/clients/bulk/clear", nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = call(t, app, http.MethodGet, fmt.Sprintf("/api/clients/%d", client.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = call(t, app, http.MethodGet, "/api/clients/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestInvoicesAndAging(t *testing.T) {
	app, db := newTestApp(t, Options{})
	client := models.Client{Name: "Acme"}
	require.NoError(t, db.Create(&client).Error)

	resp := call(t, app, http.MethodPost, "/api/invoices", map[string]interface{}{
		"client_id": 999, "invoice_number": "INV-0", "amount": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Client not found", resp.errorMessage(t))

	resp = call(t, app, http.MethodPost, "/api/invoices", map[string]interface{}{"client_id": client.ID})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	for i, days := range []int{10, 45, 75, 120} {
		sent := asOf.AddDate(0, 0, -days)
		resp = call(t, app, http.MethodPost, "/api/invoices", map[string]interface{}{
			"client_id":      client.ID,
			"invoice_number": fmt.Sprintf("INV-%d", i+1),
			"amount":         100 * (i + 1),
			"sent_date":      sent,
		})
		require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	}

	resp = call(t, app, http.MethodPost, "/api/invoices", map[string]interface{}{
		"client_id": client.ID, "invoice_number": "INV-1", "amount": 5,
	})
	assert.Equal(t, http.StatusConflict, resp.status)

	var paid models.Invoice
	require.NoError(t, db.Where("invoice_number = ?", "INV-4").First(&paid).Error)
	resp = call(t, app, http.MethodPatch, fmt.Sprintf("/api/invoices/%d", paid.ID), map[string]interface{}{"status": "paid"})
	require.Equal(t, http.StatusOK, resp.status)
	var updated models.Invoice
	resp.data(t, &updated)
	assert.NotNil(t, updated.PaidAt)

	resp = call(t, app, http.MethodGet, "/api/invoices/aging?now=2024-06-30", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var report utils.AgingReport
	resp.data(t, &report)
	assert.Equal(t, 3, report.TotalCount)
	assert.Equal(t, 600.0, report.TotalAmount)
	assert.Equal(t, 1, report.ExcludedPaid)

	for _, label := range []string{utils.Bucket0To29, utils.Bucket30To59, utils.Bucket60To89} {
		require.NotNil(t, report.Bucket(label), label)
		assert.Equal(t, 1, report.Bucket(label).Count, label)
	}
	assert.Equal(t, 0, report.Bucket(utils.Bucket90Plus).Count)

	resp = call(t, app, http.MethodGet, "/api/invoices/aging?now=2024-06-30&exclude_paid=false", nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &report)
	assert.Equal(t, 4, report.TotalCount)

	resp = call(t, app, http.MethodGet, "/api/invoices/aging?basis=paid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = call(t, app, http.MethodGet, "/api/invoices?status=paid", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var page struct {
		Data  []models.Invoice `json:"data"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.body, &page))
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "INV-4", page.Data[0].InvoiceNumber)
	require.NotNil(t, page.Data[0].Client)

	resp = call(t, app, http.MethodDelete, fmt.Sprintf("/api/invoices/%d", paid.ID), nil)
	require.Equal(t, http.StatusOK, resp.status)

	// the number is free again after a delete
	resp = call(t, app, http.MethodPost, "/api/invoices", map[string]interface{}{
		"client_id": client.ID, "invoice_number": "INV-4", "amount": 5,
	})
	assert.Equal(t, http.StatusCreated, resp.status)
}

func multipartCSV(t *testing.T, importType, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("type", importType))
	part, err := w.CreateFormFile("file", "import.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestLeadPipelineAndExport(t *testing.T) {
	app, db := newTestApp(t, Options{})

	for _, body := range []map[string]interface{}{
		{"name": "Ada", "email": "ada@fund.com", "stage": "qualified", "likelihood_of_closing": "high", "interest_tags": []string{"gold"}},
		{"name": "Bob", "company": "Gold Partners", "stage": "closed_lost"},
		{"name": "Cy", "next_step": "Send, deck"},
	} {
		resp := call(t, app, http.MethodPost, "/api/leads", body)
		require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	}
	require.NoError(t, db.Create(&models.Lead{Name: "Legacy", Stage: "negotiating"}).Error)

	resp := call(t, app, http.MethodPost, "/api/leads", map[string]interface{}{"name": "Bad", "stage": "won"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = call(t, app, http.MethodGet, "/api/leads/pipeline", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var pipeline utils.Pipeline
	resp.data(t, &pipeline)
	assert.Equal(t, 4, pipeline.Total)

	counts := map[models.LeadStage]int{}
	for _, g := range pipeline.Stages {
		counts[g.Stage] = g.Count
	}
	want := map[models.LeadStage]int{
		models.StageProspect:   1,
		models.StageQualified:  1,
		models.StageProposal:   0,
		models.StageClosedWon:  0,
		models.StageClosedLost: 1,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("stage counts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, pipeline.Unknown.Count)
	assert.Equal(t, "Legacy", pipeline.Unknown.Leads[0].Name)

	resp = call(t, app, http.MethodGet, "/api/leads/pipeline?search=gold", nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &pipeline)
	assert.Equal(t, 2, pipeline.Total)

	resp = call(t, app, http.MethodGet, "/api/leads/pipeline?active_only=true", nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &pipeline)
	assert.Equal(t, 3, pipeline.Total)
	assert.Nil(t, pipeline.Group(models.StageClosedLost))
	assert.Equal(t, 1, pipeline.Unknown.Count)

	resp = call(t, app, http.MethodGet, "/api/leads/export", nil)
	require.Equal(t, http.StatusOK, resp.status)
	records, err := csv.NewReader(strings.NewReader(string(resp.body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"Name", "Email", "Company", "Phone", "Stage", "Interest Tags", "Likelihood", "Next Step"}, records[0])
	assert.Equal(t, "Ada", records[1][0])
	assert.Equal(t, "gold", records[1][5])
	assert.Equal(t, "Send, deck", records[3][7])
}

func TestLeadSearchMatchesPipeline(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	for _, body := range []map[string]interface{}{
		{"name": "Ada", "interest_tags": []string{"M&A", "gold"}},
		{"name": "Bob", "company": "Energy Partners"},
		{"name": "Cy", "email": "cy@fund.com"},
	} {
		resp := call(t, app, http.MethodPost, "/api/leads", body)
		require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	}

	type leadPage struct {
		Data  []models.Lead `json:"data"`
		Total int64         `json:"total"`
	}
	list := func(query string) leadPage {
		t.Helper()
		resp := call(t, app, http.MethodGet, "/api/leads?search="+query, nil)
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		var page leadPage
		require.NoError(t, json.Unmarshal(resp.body, &page))
		return page
	}

	page := list("m%26a")
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "Ada", page.Data[0].Name)

	var pipeline utils.Pipeline
	resp := call(t, app, http.MethodGet, "/api/leads/pipeline?search=m%26a", nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp.data(t, &pipeline)
	assert.Equal(t, int(page.Total), pipeline.Total)

	// wildcard characters are matched literally
	assert.EqualValues(t, 0, list("%25").Total)
	assert.EqualValues(t, 0, list("_").Total)

	page = list("a&limit=1&page=2")
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Data, 1)

	resp = call(t, app, http.MethodPost, "/api/clients", map[string]interface{}{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.status)
	resp = call(t, app, http.MethodGet, "/api/clients?search=%25", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var clients struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.body, &clients))
	assert.EqualValues(t, 0, clients.Total)
}

func TestTasksDefaultsAndOrdering(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	resp := call(t, app, http.MethodPost, "/api/tasks", map[string]interface{}{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = call(t, app, http.MethodPost, "/api/tasks", map[string]interface{}{"title": "Undated"})
	require.Equal(t, http.StatusCreated, resp.status)
	var task models.Task
	resp.data(t, &task)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, models.TaskPending, task.Status)

	due := time.Now().Add(24 * time.Hour)
	resp = call(t, app, http.MethodPost, "/api/tasks", map[string]interface{}{"title": "Call Acme", "priority": "high", "due_date": due})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = call(t, app, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var page struct {
		Data []models.Task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.body, &page))
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Call Acme", page.Data[0].Title)

	resp = call(t, app, http.MethodGet, "/api/tasks?priority=urgent", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestAIEndpoints(t *testing.T) {
	app, db := newTestApp(t, Options{})

	resp := call(t, app, http.MethodPost, "/api/ai/lead-scoring", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "AI provider is not configured", resp.errorMessage(t))

	provider := &scriptedProvider{}
	svc, err := ai.NewService(db, provider)
	require.NoError(t, err)
	app = fiber.New()
	SetupRoutes(app, db, Options{AI: svc})

	resp = call(t, app, http.MethodPost, "/api/ai/lead-scoring", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	lead := models.Lead{Name: "Ada", Stage: models.StageQualified}
	require.NoError(t, db.Create(&lead).Error)

	provider.reply = fmt.Sprintf("```json\n[{\"lead_id\": %d, \"score\": 140, \"likelihood\": \"HIGH\", \"reasoning\": \"engaged\"}]\n```", lead.ID)
	resp = call(t, app, http.MethodPost, "/api/ai/lead-scoring", map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	var gen ai.Generation[[]ai.LeadScore]
	resp.data(t, &gen)
	require.Len(t, gen.Result, 1)
	assert.Equal(t, 100, gen.Result[0].Score)
	assert.Equal(t, models.LikelihoodHigh, gen.Result[0].Likelihood)
	assert.Equal(t, "Ada", gen.Result[0].Name)

	resp = call(t, app, http.MethodPost, "/api/ai/feedback", map[string]interface{}{"content_id": gen.ContentID, "rating": "up"})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))

	resp = call(t, app, http.MethodGet, "/api/ai/content/"+gen.ContentID, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var content models.AIGeneratedContent
	resp.data(t, &content)
	assert.Equal(t, ai.ToolLeadScoring, content.Tool)
	assert.Len(t, content.Feedback, 1)

	provider.reply = "not json at all"
	resp = call(t, app, http.MethodPost, "/api/ai/lead-scoring", map[string]interface{}{})
	assert.Equal(t, http.StatusBadGateway, resp.status)

	resp = call(t, app, http.MethodPost, "/api/ai/generate-campaign-email", map[string]interface{}{"report_ids": []int{}})
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestSummarizeReplacesSummary(t *testing.T) {
	app, db := newTestApp(t, Options{})
	provider := &scriptedProvider{reply: "Brief\n---\nDetail\n---\nFull"}
	svc, err := ai.NewService(db, provider)
	require.NoError(t, err)
	app = fiber.New()
	SetupRoutes(app, db, Options{AI: svc})

	report := models.ContentReport{Title: "Weekly", Type: models.ReportWILTW, FullContent: "Gold is strong."}
	require.NoError(t, db.Create(&report).Error)
	path := "/api/content-reports/" + fmt.Sprint(report.ID) + "/summarize"

	countRows := func(model interface{}) int64 {
		t.Helper()
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}

	var out struct {
		ContentID string               `json:"content_id"`
		Summary   models.ReportSummary `json:"summary"`
	}
	resp := call(t, app, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	resp.data(t, &out)
	firstID := out.Summary.ID

	provider.reply = "Short\n---\nLonger\n---\nLongest"
	resp = call(t, app, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	resp.data(t, &out)
	assert.Equal(t, firstID, out.Summary.ID)
	assert.Equal(t, "Short\n---\nLonger\n---\nLongest", out.Summary.ParsedSummary)
	assert.EqualValues(t, 1, countRows(&models.ReportSummary{}))

	resp = call(t, app, http.MethodPost, path+"?summary_type=brief", nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.EqualValues(t, 2, countRows(&models.ReportSummary{}))

	resp = call(t, app, http.MethodDelete, "/api/report-summaries/"+fmt.Sprint(firstID), nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp = call(t, app, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.EqualValues(t, 2, countRows(&models.ReportSummary{}))

	// a failed summary write leaves no generated content behind
	generated := countRows(&models.AIGeneratedContent{})
	require.NoError(t, db.Migrator().DropTable(&models.ReportSummary{}))
	resp = call(t, app, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.Equal(t, generated, countRows(&models.AIGeneratedContent{}))
}

func TestAIRateLimit(t *testing.T) {
	app, _ := newTestApp(t, Options{AIRateLimit: 2})

	for i := 0; i < 2; i++ {
		resp := call(t, app, http.MethodPost, "/api/ai/lead-scoring", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, resp.status)
	}
	resp := call(t, app, http.MethodPost, "/api/ai/lead-scoring", map[string]interface{}{})
	assert.Equal(t, http.StatusTooManyRequests, resp.status)

	// feedback is not rate limited
	resp = call(t, app, http.MethodGet, "/api/ai/content/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestDashboardStats(t *testing.T) {
	app, db := newTestApp(t, Options{})

	renewal := time.Now().Add(10 * 24 * time.Hour)
	client := models.Client{Name: "Acme", RiskLevel: models.RiskHigh, RenewalDate: &renewal}
	require.NoError(t, db.Create(&client).Error)
	require.NoError(t, db.Create(&models.Client{Name: "Beta", RiskLevel: models.RiskLow}).Error)

	sent := time.Now().AddDate(0, 0, -40)
	require.NoError(t, db.Create(&models.Invoice{ClientID: client.ID, InvoiceNumber: "A", Amount: 300, SentDate: &sent, Status: models.InvoicePending}).Error)
	require.NoError(t, db.Create(&models.Invoice{ClientID: client.ID, InvoiceNumber: "B", Amount: 50, SentDate: &sent, Status: models.InvoicePaid}).Error)
	require.NoError(t, db.Create(&models.Lead{Name: "Ada", Stage: models.StageProposal}).Error)

	overdue := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&models.Task{Title: "Late", Priority: models.PriorityHigh, Status: models.TaskPending, DueDate: &overdue}).Error)
	require.NoError(t, db.Create(&models.Task{Title: "Done", Priority: models.PriorityLow, Status: models.TaskCompleted, DueDate: &overdue}).Error)

	resp := call(t, app, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	var stats controller.DashboardStats
	resp.data(t, &stats)

	assert.EqualValues(t, 2, stats.TotalClients)
	assert.EqualValues(t, 1, stats.ClientsByRisk[models.RiskHigh])
	require.Len(t, stats.UpcomingRenewals, 1)
	assert.Equal(t, "Acme", stats.UpcomingRenewals[0].Name)
	assert.Equal(t, 9, stats.UpcomingRenewals[0].DaysLeft)
	assert.EqualValues(t, 1, stats.TotalLeads)
	assert.EqualValues(t, 1, stats.LeadsByStage[models.StageProposal])
	assert.EqualValues(t, 0, stats.LeadsByStage[models.StageProspect])
	assert.Equal(t, 300.0, stats.OutstandingAmount)
	assert.EqualValues(t, 1, stats.OpenTasks)
	assert.EqualValues(t, 1, stats.OverdueTasks)
}

func TestImportURLRejectsLocalHosts(t *testing.T) {
	app, db := newTestApp(t, Options{})

	resp := call(t, app, http.MethodPost, "/api/content-reports/import-url", map[string]string{"url": "http://127.0.0.1:9000/admin"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "URL host is not allowed", resp.errorMessage(t))

	var n int64
	require.NoError(t, db.Model(&models.ContentReport{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUploadCSV(t *testing.T) {
	app, db := newTestApp(t, Options{})

	body, contentType := multipartCSV(t, "prospects", "Name,Email\nAda,ada@fund.com\nBob,bob@fund.com\n")
	req := httptest.NewRequest(http.MethodPost, "/api/upload/csv", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var result controller.ImportResult
	apiResponse{status: resp.StatusCode, body: raw}.data(t, &result)
	assert.Equal(t, 2, result.Created)

	var count int64
	require.NoError(t, db.Model(&models.Lead{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	body, contentType = multipartCSV(t, "prospects", "Email\nada@fund.com\n")
	req = httptest.NewRequest(http.MethodPost, "/api/upload/csv", body)
	req.Header.Set("Content-Type", contentType)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType = multipartCSV(t, "contacts", "Name\nAda\n")
	req = httptest.NewRequest(http.MethodPost, "/api/upload/csv", body)
	req.Header.Set("Content-Type", contentType)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInboxSyncNotConfigured(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	resp := call(t, app, http.MethodPost, "/api/inbox/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
}
