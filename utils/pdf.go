package utils

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"salesdesk/models"
)

// ExtractPDFText returns the plain text of every page of a PDF document.
func ExtractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DetectReportType looks for the series name in the filename first, then in
// the opening of the document.
func DetectReportType(filename, content string) models.ReportType {
	if t := reportTypeIn(filepath.Base(filename)); t != "" {
		return t
	}
	head := content
	if len(head) > 2000 {
		head = head[:2000]
	}
	if t := reportTypeIn(head); t != "" {
		return t
	}
	return models.ReportOther
}

func reportTypeIn(s string) models.ReportType {
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "WILTW"), strings.Contains(upper, "WHAT I LEARNED THIS WEEK"):
		return models.ReportWILTW
	case strings.Contains(upper, "WATMTU"), strings.Contains(upper, "WHAT ARE THE MARKETS TELLING US"):
		return models.ReportWATMTU
	}
	return ""
}

// TitleFromFilename turns "WILTW_2024-03-07.pdf" into "WILTW 2024-03-07".
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Join(strings.Fields(strings.ReplaceAll(base, "_", " ")), " ")
}
