package config

import (
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitLogger configures the global logrus logger from LOG_LEVEL and LOG_FORMAT.
func InitLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(AppConfig.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if strings.ToLower(AppConfig.LogFormat) == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// InitSentry enables error reporting when SENTRY_DSN is set. The returned
// function flushes buffered events and must be deferred by the caller.
func InitSentry() (func(), error) {
	if AppConfig.SentryDSN == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              AppConfig.SentryDSN,
		Environment:      AppConfig.Environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, err
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}
