package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"gopkg.in/gomail.v2"

	"salesdesk/config"
)

// ErrMailerNotConfigured is returned when no SMTP host/sender is configured.
var ErrMailerNotConfigured = errors.New("email delivery is not configured")

// OutgoingEmail is written in markdown; HTML is rendered before sending.
type OutgoingEmail struct {
	To       []string
	Subject  string
	Markdown string
}

// Mailer delivers an email and returns the Message-ID it was sent with.
type Mailer interface {
	Send(ctx context.Context, msg OutgoingEmail) (string, error)
	From() string
}

var md = goldmark.New()

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 640px; margin: 0 auto; padding: 20px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; }
    </style>
</head>
<body>
    {{.Body}}
    <div class="footer">
        <p>© {{.Year}} {{.FromName}}</p>
    </div>
</body>
</html>`))

// RenderMarkdown converts a markdown body into an HTML fragment.
func RenderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderEmailHTML wraps the rendered markdown body in the email layout.
func RenderEmailHTML(subject, markdown, fromName string) (string, error) {
	fragment, err := RenderMarkdown(markdown)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = layout.Execute(&buf, struct {
		Subject  string
		Body     template.HTML
		Year     int
		FromName string
	}{
		Subject:  subject,
		Body:     template.HTML(fragment),
		Year:     time.Now().Year(),
		FromName: fromName,
	})
	if err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return buf.String(), nil
}

type SMTPMailer struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (m *SMTPMailer) From() string {
	return m.fromEmail
}

func (m *SMTPMailer) Send(ctx context.Context, msg OutgoingEmail) (string, error) {
	if m == nil || m.dialer == nil || m.dialer.Host == "" || m.fromEmail == "" {
		return "", ErrMailerNotConfigured
	}
	if len(msg.To) == 0 {
		return "", errors.New("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	html, err := RenderEmailHTML(msg.Subject, msg.Markdown, m.fromName)
	if err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(m.fromEmail))

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.fromEmail, m.fromName)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", messageID)
	gm.SetBody("text/plain", msg.Markdown)
	gm.AddAlternative("text/html", html)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return "", fmt.Errorf("error sending email: %w", err)
	}
	return messageID, nil
}

// domainOf returns the part after @, or the whole string.
func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return email
}
