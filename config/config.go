package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type LLMConfig struct {
	Provider       string `json:"provider"` // openai, gemini
	Model          string `json:"model"`
	APIKey         string `json:"-"`
	BaseURL        string `json:"base_url"`
	MaxTokens      int    `json:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

type IMAPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"-"`
	Mailbox     string `json:"mailbox"`
	Encryption  string `json:"encryption"` // SSL, STARTTLS, NONE
	SyncMinutes int    `json:"sync_minutes"`
}

type Config struct {
	Environment         string      `json:"environment"`
	ServerPort          string      `json:"server_port"`
	CORSOrigins         []string    `json:"cors_origins"`
	AuthSecret          string      `json:"-"`
	DBDriver            string      `json:"db_driver"`
	DBHost              string      `json:"db_host"`
	DBPort              string      `json:"db_port"`
	DBUser              string      `json:"db_user"`
	DBPassword          string      `json:"-"`
	DBName              string      `json:"db_name"`
	DBSSLMode           string      `json:"db_ssl_mode"`
	DBMaxIdleConns      int         `json:"db_max_idle_conns"`
	DBMaxOpenConns      int         `json:"db_max_open_conns"`
	SQLitePath          string      `json:"sqlite_path"`
	LLM                 LLMConfig   `json:"llm"`
	AIRateLimit         int         `json:"ai_rate_limit_per_minute"`
	Redis               RedisConfig `json:"redis"`
	SMTP                SMTPConfig  `json:"smtp"`
	IMAP                IMAPConfig  `json:"imap"`
	StripeSecretKey     string      `json:"-"`
	StripeWebhookSecret string      `json:"-"`
	SentryDSN           string      `json:"-"`
	LogLevel            string      `json:"log_level"`
	LogFormat           string      `json:"log_format"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		AuthSecret:     getEnv("AUTH_SECRET", ""),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "salesdesk"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		SQLitePath:     getEnv("SQLITE_PATH", "salesdesk.db"),
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:          getEnv("LLM_MODEL", ""),
			APIKey:         firstNonEmpty(getEnv("LLM_API_KEY", ""), getEnv("OPENAI_API_KEY", ""), getEnv("GEMINI_API_KEY", "")),
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 4000),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 120),
		},
		AIRateLimit: getEnvAsInt("AI_RATE_LIMIT_PER_MINUTE", 0),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("FROM_EMAIL", ""),
			FromName:  getEnv("FROM_NAME", "Research Desk"),
		},
		IMAP: IMAPConfig{
			Host:        getEnv("IMAP_HOST", ""),
			Port:        getEnvAsInt("IMAP_PORT", 993),
			Username:    getEnv("IMAP_USERNAME", ""),
			Password:    getEnv("IMAP_PASSWORD", ""),
			Mailbox:     getEnv("IMAP_MAILBOX", "INBOX"),
			Encryption:  getEnv("IMAP_ENCRYPTION", "SSL"),
			SyncMinutes: getEnvAsInt("INBOX_SYNC_MINUTES", 0),
		},
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}

	if err := AppConfig.Validate(); err != nil {
		return err
	}

	logConfig()
	return nil
}

// Validate checks settings that would otherwise fail later at first use.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}

	if c.Environment == "production" && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required in production")
	}
	return nil
}

// LLMConfigured reports whether an API key is available for the model provider.
func (c Config) LLMConfigured() bool {
	return c.LLM.APIKey != ""
}

func (c Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.FromEmail != ""
}

func (c Config) IMAPConfigured() bool {
	return c.IMAP.Host != "" && c.IMAP.Username != ""
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func logConfig() {
	log := logrus.WithField("component", "config")
	log.Info("Loaded configuration")
	log.Infof("Environment: %s", AppConfig.Environment)
	log.Infof("Server Port: %s", AppConfig.ServerPort)
	if AppConfig.DBDriver == "sqlite" {
		log.Infof("Database: sqlite %s", AppConfig.SQLitePath)
	} else {
		log.Infof("Database: %s@%s:%s/%s",
			AppConfig.DBUser,
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBName)
	}
	log.Infof("Integrations: LLM(%s,%t) SMTP(%t) IMAP(%t) Stripe(%t) Sentry(%t)",
		AppConfig.LLM.Provider,
		AppConfig.LLMConfigured(),
		AppConfig.SMTPConfigured(),
		AppConfig.IMAPConfigured(),
		AppConfig.StripeSecretKey != "",
		AppConfig.SentryDSN != "")
}
