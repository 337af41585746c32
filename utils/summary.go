package utils

import (
	"regexp"
	"strings"
)

const (
	SummaryFormatDelimited = "delimited"
	SummaryFormatHeadings  = "headings"
	SummaryFormatRaw       = "raw"
)

// SummarySections is a report summary split into its named parts. Full always
// holds the trimmed input so callers can fall back to it.
type SummarySections struct {
	Format        string `json:"format"`
	Structured    string `json:"structured,omitempty"`
	Detailed      string `json:"detailed,omitempty"`
	Comprehensive string `json:"comprehensive,omitempty"`
	Full          string `json:"full"`
}

// summaryDelimiterRe matches a line holding only "---", so table rules such
// as |---|---| do not split a summary.
var summaryDelimiterRe = regexp.MustCompile(`(?m)^[ \t]*---[ \t]*$`)

var summaryHeadingRe = regexp.MustCompile(
	`(?im)^[ \t]*#{1,6}[ \t]*(?:\*\*)?[ \t]*(structured article-by-article analysis|detailed(?:[ \t]+article)?[ \t]+summary|comprehensive analysis)[^\n]*$`,
)

// SplitSummary splits raw model output into structured, detailed and
// comprehensive sections. Three non-empty parts separated by "---" lines are
// labelled by position; otherwise known markdown headings are used, each section
// running to the next known heading. The first occurrence of a repeated heading
// wins, even when its body is empty. Input matching neither form comes back with
// Format raw.
func SplitSummary(raw string) SummarySections {
	full := strings.TrimSpace(raw)
	out := SummarySections{Format: SummaryFormatRaw, Full: full}
	if full == "" {
		return out
	}

	if parts := summaryDelimiterRe.Split(full, -1); len(parts) == 3 {
		trimmed := make([]string, 3)
		ok := true
		for i, p := range parts {
			trimmed[i] = stripLeadingHeading(strings.TrimSpace(p))
			if trimmed[i] == "" {
				ok = false
			}
		}
		if ok {
			out.Format = SummaryFormatDelimited
			out.Structured, out.Detailed, out.Comprehensive = trimmed[0], trimmed[1], trimmed[2]
			return out
		}
	}

	matches := summaryHeadingRe.FindAllStringSubmatchIndex(full, -1)
	if len(matches) == 0 {
		return out
	}

	filled := make(map[*string]bool, 3)
	for i, m := range matches {
		bodyEnd := len(full)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		target := sectionFor(&out, full[m[2]:m[3]])
		if target == nil || filled[target] {
			continue
		}
		*target = strings.TrimSpace(full[m[1]:bodyEnd])
		filled[target] = true
	}

	if out.Structured != "" || out.Detailed != "" || out.Comprehensive != "" {
		out.Format = SummaryFormatHeadings
	}
	return out
}

func sectionFor(s *SummarySections, heading string) *string {
	switch h := strings.ToLower(heading); {
	case strings.HasPrefix(h, "structured"):
		return &s.Structured
	case strings.HasPrefix(h, "detailed"):
		return &s.Detailed
	case strings.HasPrefix(h, "comprehensive"):
		return &s.Comprehensive
	}
	return nil
}

func stripLeadingHeading(part string) string {
	loc := summaryHeadingRe.FindStringIndex(part)
	if loc == nil || loc[0] != 0 {
		return part
	}
	return strings.TrimSpace(part[loc[1]:])
}
