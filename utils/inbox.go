package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"salesdesk/config"
)

// InboundEmail is a received message reduced to what the email history stores.
type InboundEmail struct {
	MessageID   string
	InReplyTo   string
	FromAddress string
	To          string
	Subject     string
	Body        string
	Date        time.Time
}

// InboxFetcher returns messages received since the given time.
type InboxFetcher interface {
	FetchSince(ctx context.Context, since time.Time) ([]InboundEmail, error)
}

type IMAPFetcher struct {
	cfg config.IMAPConfig
}

func NewIMAPFetcher(cfg config.IMAPConfig) *IMAPFetcher {
	return &IMAPFetcher{cfg: cfg}
}

func (f *IMAPFetcher) dial() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	tlsConfig := &tls.Config{ServerName: f.cfg.Host}

	switch strings.ToUpper(f.cfg.Encryption) {
	case "SSL", "TLS":
		return client.DialTLS(addr, tlsConfig)
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			c.Logout()
			return nil, err
		}
		return c, nil
	default:
		return client.Dial(addr)
	}
}

func (f *IMAPFetcher) FetchSince(ctx context.Context, since time.Time) ([]InboundEmail, error) {
	if f.cfg.Host == "" {
		return nil, errors.New("IMAP is not configured")
	}

	c, err := f.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	mailbox := f.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var out []InboundEmail
	for msg := range messages {
		if ctx.Err() != nil {
			continue // drain so Fetch can return
		}
		email, err := parseIMAPMessage(msg, section)
		if err != nil {
			LogError("imap_parse", err, map[string]interface{}{"seq": msg.SeqNum})
			continue
		}
		out = append(out, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (InboundEmail, error) {
	if msg.Envelope == nil {
		return InboundEmail{}, errors.New("message has no envelope")
	}

	email := InboundEmail{
		MessageID: msg.Envelope.MessageId,
		InReplyTo: msg.Envelope.InReplyTo,
		To:        formatAddresses(msg.Envelope.To),
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date,
	}
	if len(msg.Envelope.From) > 0 {
		email.FromAddress = strings.ToLower(addressOf(msg.Envelope.From[0]))
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return email, nil
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return email, fmt.Errorf("failed to create message reader: %w", err)
	}

	var html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return email, fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return email, fmt.Errorf("failed to read body: %w", err)
			}
			switch {
			case strings.Contains(contentType, "text/plain") && email.Body == "":
				email.Body = string(b)
			case strings.Contains(contentType, "text/html") && html == "":
				html = string(b)
			}
		}
	}
	if email.Body == "" {
		email.Body = html
	}
	return email, nil
}

func addressOf(addr *imap.Address) string {
	return addr.MailboxName + "@" + addr.HostName
}

func formatAddresses(addrs []*imap.Address) string {
	var result []string
	for _, addr := range addrs {
		if addr.PersonalName != "" {
			result = append(result, fmt.Sprintf("%s <%s>", addr.PersonalName, addressOf(addr)))
		} else {
			result = append(result, addressOf(addr))
		}
	}
	return strings.Join(result, ", ")
}
