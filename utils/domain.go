package utils

import (
	"bufio"
	"context"
	"strings"

	"github.com/likexian/whois"
)

// DomainFacts is what call prep knows about a prospect's email domain.
type DomainFacts struct {
	Domain       string `json:"domain"`
	FreeProvider bool   `json:"free_provider"`
	Registrar    string `json:"registrar,omitempty"`
	Organization string `json:"organization,omitempty"`
	Created      string `json:"created,omitempty"`
	Country      string `json:"country,omitempty"`
}

var freeEmailProviders = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "outlook.com": true, "hotmail.com": true,
	"aol.com": true, "protonmail.com": true, "icloud.com": true, "mail.com": true,
	"yandex.com": true, "zoho.com": true, "gmx.com": true, "live.com": true,
}

// whoisLookup is replaced in tests.
var whoisLookup = func(domain string) (string, error) {
	return whois.Whois(domain)
}

// ExtractDomain returns the lower-cased domain of an email address, or "".
func ExtractDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}

// LookupDomainFacts queries WHOIS for the domain of email. Free mail providers
// are not looked up. A failed lookup returns the facts gathered so far and the error.
func LookupDomainFacts(ctx context.Context, email string) (*DomainFacts, error) {
	domain := ExtractDomain(email)
	if domain == "" {
		return nil, nil
	}

	facts := &DomainFacts{Domain: domain, FreeProvider: freeEmailProviders[domain]}
	if facts.FreeProvider {
		return facts, nil
	}

	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := whoisLookup(domain)
		ch <- result{raw, err}
	}()

	select {
	case <-ctx.Done():
		return facts, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return facts, res.err
		}
		parseWhois(res.raw, facts)
		return facts, nil
	}
}

func parseWhois(raw string, facts *DomainFacts) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "registrar":
			setOnce(&facts.Registrar, value)
		case "registrant organization", "org", "organization":
			setOnce(&facts.Organization, value)
		case "creation date", "created", "registered on":
			setOnce(&facts.Created, value)
		case "registrant country", "country":
			setOnce(&facts.Country, value)
		}
	}
}

func setOnce(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
