package utils

import (
	"strings"

	"salesdesk/models"
)

// ActivePipelineStages are the open and won stages shown in the summary view.
var ActivePipelineStages = []models.LeadStage{
	models.StageProspect,
	models.StageQualified,
	models.StageProposal,
	models.StageClosedWon,
}

type LikelihoodBreakdown struct {
	Low         int `json:"low"`
	Medium      int `json:"medium"`
	High        int `json:"high"`
	Unspecified int `json:"unspecified"`
}

func (b *LikelihoodBreakdown) add(l models.Likelihood) {
	switch l {
	case models.LikelihoodLow:
		b.Low++
	case models.LikelihoodMedium:
		b.Medium++
	case models.LikelihoodHigh:
		b.High++
	default:
		b.Unspecified++
	}
}

type StageGroup struct {
	Stage      models.LeadStage    `json:"stage"`
	Count      int                 `json:"count"`
	Likelihood LikelihoodBreakdown `json:"likelihood"`
	Leads      []models.Lead       `json:"leads"`
}

// Pipeline is the board view. Leads whose stage is not among Stages are kept
// in Unknown rather than dropped.
type Pipeline struct {
	Stages  []StageGroup `json:"stages"`
	Unknown StageGroup   `json:"unknown"`
	Total   int          `json:"total"`
}

// Group returns the group for stage, or nil if the stage is not on the board.
func (p Pipeline) Group(stage models.LeadStage) *StageGroup {
	for i := range p.Stages {
		if p.Stages[i].Stage == stage {
			return &p.Stages[i]
		}
	}
	return nil
}

// MatchesLeadSearch is a case-insensitive substring match against name,
// email, company and every interest tag.
func MatchesLeadSearch(lead models.Lead, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{lead.Name, lead.Email, lead.Company} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	for _, tag := range lead.InterestTags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// GroupPipeline filters leads by search then partitions them by stage in a single pass.
func GroupPipeline(leads []models.Lead, stages []models.LeadStage, search string) Pipeline {
	p := Pipeline{
		Stages:  make([]StageGroup, len(stages)),
		Unknown: StageGroup{Stage: "unknown", Leads: []models.Lead{}},
	}
	index := make(map[models.LeadStage]int, len(stages))
	for i, stage := range stages {
		p.Stages[i] = StageGroup{Stage: stage, Leads: []models.Lead{}}
		index[stage] = i
	}

	for _, lead := range leads {
		if !MatchesLeadSearch(lead, search) {
			continue
		}
		group := &p.Unknown
		if i, ok := index[lead.Stage]; ok {
			group = &p.Stages[i]
		}
		group.Leads = append(group.Leads, lead)
		group.Count++
		group.Likelihood.add(lead.LikelihoodOfClosing)
		p.Total++
	}
	return p
}

// FilterByStage returns the leads whose stage equals stage.
func FilterByStage(leads []models.Lead, stage models.LeadStage) []models.Lead {
	out := []models.Lead{}
	for _, lead := range leads {
		if lead.Stage == stage {
			out = append(out, lead)
		}
	}
	return out
}
