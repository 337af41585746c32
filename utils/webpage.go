package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	readability "github.com/go-shiori/go-readability"
)

var (
	ErrNoArticleText = errors.New("no extractable article text")
	// ErrBlockedHost is returned for loopback, private and link-local targets.
	ErrBlockedHost = errors.New("url host is not allowed")
)

const maxPageBytes = 10 << 20

// WebArticle is the readable part of a fetched page.
type WebArticle struct {
	URL     string
	Title   string
	Excerpt string
	Text    string
}

// PublicIP reports whether ip is routable on the public internet.
func PublicIP(ip net.IP) bool {
	return ip != nil &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// checkPageHost rejects hosts that name a local address directly. Names that
// resolve to one are caught when dialing.
func checkPageHost(host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ErrBlockedHost
	}
	if ip := net.ParseIP(host); ip != nil && !PublicIP(ip) {
		return ErrBlockedHost
	}
	return nil
}

// pageDialer refuses connections to non-public addresses, including those
// reached through redirects or DNS.
var pageDialer = &net.Dialer{
	Timeout: 10 * time.Second,
	Control: func(_, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return err
		}
		if !PublicIP(net.ParseIP(host)) {
			return ErrBlockedHost
		}
		return nil
	},
}

var pageClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         pageDialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return http.ErrUseLastResponse
		}
		return nil
	},
}

// FetchArticle downloads rawURL and extracts the main article text.
func FetchArticle(ctx context.Context, rawURL string) (*WebArticle, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	if err := checkPageHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "salesdesk/1.0 (report import)")

	resp, err := pageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", parsed.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: %s", parsed.Host, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, ErrNoArticleText
	}
	return &WebArticle{
		URL:     parsed.String(),
		Title:   strings.TrimSpace(article.Title),
		Excerpt: strings.TrimSpace(article.Excerpt),
		Text:    text,
	}, nil
}
