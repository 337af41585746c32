package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	ToolCallPrep           = "call_prep"
	ToolContentSuggestions = "content_suggestions"
	ToolCampaignEmail      = "campaign_email"
	ToolTrackThemes        = "track_themes"
	ToolThemeEmail         = "theme_email"
	ToolLeadScoring        = "lead_scoring"
	ToolFundMatch          = "fund_match"
	ToolSummarizeReport    = "summarize_report"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptFile struct {
	ReportsBlock string                `yaml:"reports_block"`
	Prompts      map[string]promptSpec `yaml:"prompts"`
}

type promptSpec struct {
	MaxTokens int    `yaml:"max_tokens"`
	Template  string `yaml:"template"`
}

type prompt struct {
	maxTokens int
	tmpl      *template.Template
}

// Prompts holds the parsed template for every tool.
type Prompts map[string]prompt

var funcs = template.FuncMap{
	"join": strings.Join,
}

// LoadPrompts parses a prompt file. The embedded file is used when data is nil.
func LoadPrompts(data []byte) (Prompts, error) {
	if data == nil {
		data = promptsYAML
	}

	var file promptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}

	out := make(Prompts, len(file.Prompts))
	for name, spec := range file.Prompts {
		t := template.New(name).Funcs(funcs).Option("missingkey=error")
		if _, err := t.New("reports").Parse(file.ReportsBlock); err != nil {
			return nil, fmt.Errorf("parsing reports block: %w", err)
		}
		if _, err := t.Parse(spec.Template); err != nil {
			return nil, fmt.Errorf("parsing prompt %s: %w", name, err)
		}
		maxTokens := spec.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 2000
		}
		out[name] = prompt{maxTokens: maxTokens, tmpl: t}
	}

	for _, tool := range []string{ToolCallPrep, ToolContentSuggestions, ToolCampaignEmail, ToolTrackThemes,
		ToolThemeEmail, ToolLeadScoring, ToolFundMatch, ToolSummarizeReport} {
		if _, ok := out[tool]; !ok {
			return nil, fmt.Errorf("prompt %s is missing", tool)
		}
	}
	return out, nil
}

// Render executes the named prompt and returns it with its token budget.
func (p Prompts) Render(name string, data any) (string, int, error) {
	pr, ok := p[name]
	if !ok {
		return "", 0, fmt.Errorf("unknown prompt %s", name)
	}
	var buf bytes.Buffer
	if err := pr.tmpl.Execute(&buf, data); err != nil {
		return "", 0, fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), pr.maxTokens, nil
}
