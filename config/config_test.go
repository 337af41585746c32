package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "desk.db")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "sk-gemini")
	t.Setenv("CORS_ORIGINS", "http://a.example.com, http://b.example.com,")
	t.Setenv("AI_RATE_LIMIT_PER_MINUTE", "not-a-number")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "sqlite", AppConfig.DBDriver)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, AppConfig.CORSOrigins)
	assert.Equal(t, "sk-gemini", AppConfig.LLM.APIKey)
	assert.True(t, AppConfig.LLMConfigured())
	assert.Equal(t, 0, AppConfig.AIRateLimit)
	assert.Equal(t, 4000, AppConfig.LLM.MaxTokens)
}

func TestValidate(t *testing.T) {
	base := Config{DBDriver: "postgres", DBPassword: "pw", LLM: LLMConfig{Provider: "openai"}}
	assert.NoError(t, base.Validate())

	noPassword := base
	noPassword.DBPassword = ""
	assert.Error(t, noPassword.Validate())

	badDriver := base
	badDriver.DBDriver = "mysql"
	assert.Error(t, badDriver.Validate())

	badProvider := base
	badProvider.LLM.Provider = "claude"
	assert.Error(t, badProvider.Validate())

	prod := base
	prod.Environment = "production"
	assert.Error(t, prod.Validate())
	prod.AuthSecret = "secret"
	assert.NoError(t, prod.Validate())
}

func TestIntegrationChecks(t *testing.T) {
	cfg := Config{}
	assert.False(t, cfg.SMTPConfigured())
	assert.False(t, cfg.IMAPConfigured())

	cfg.SMTP = SMTPConfig{Host: "smtp.example.com", FromEmail: "desk@example.com"}
	cfg.IMAP = IMAPConfig{Host: "imap.example.com", Username: "desk"}
	assert.True(t, cfg.SMTPConfigured())
	assert.True(t, cfg.IMAPConfigured())
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "host=db password=***** dbname=x", maskPassword("host=db password=hunter2 dbname=x"))
	assert.Equal(t, "host=db password=*****", maskPassword("host=db password=hunter2"))
	assert.Equal(t, "host=db", maskPassword("host=db"))
}

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer CloseDB(db)

	for _, table := range []string{"clients", "leads", "invoices", "content_reports", "report_summaries", "email_histories", "lead_email_histories", "tasks", "feedbacks", "ai_generated_contents", "ai_content_feedbacks"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
