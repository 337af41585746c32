package models

// LeadStage is the pipeline position of a lead.
type LeadStage string

const (
	StageProspect   LeadStage = "prospect"
	StageQualified  LeadStage = "qualified"
	StageProposal   LeadStage = "proposal"
	StageClosedWon  LeadStage = "closed_won"
	StageClosedLost LeadStage = "closed_lost"
)

// LeadStages lists every valid stage in board order.
var LeadStages = []LeadStage{StageProspect, StageQualified, StageProposal, StageClosedWon, StageClosedLost}

func (s LeadStage) Valid() bool {
	for _, v := range LeadStages {
		if s == v {
			return true
		}
	}
	return false
}

// Likelihood is used both for lead closing likelihood and AI lead scores.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "low"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodHigh   Likelihood = "high"
)

func (l Likelihood) Valid() bool {
	return l == LikelihoodLow || l == LikelihoodMedium || l == LikelihoodHigh
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// InvoiceStatus replaces free-text payment status. Days overdue is computed, never stored.
type InvoiceStatus string

const (
	InvoicePending    InvoiceStatus = "pending"
	InvoicePartial    InvoiceStatus = "partial"
	InvoicePaid       InvoiceStatus = "paid"
	InvoiceWrittenOff InvoiceStatus = "written_off"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePartial, InvoicePaid, InvoiceWrittenOff:
		return true
	}
	return false
}

// Settled reports whether the invoice no longer counts as outstanding.
func (s InvoiceStatus) Settled() bool {
	return s == InvoicePaid || s == InvoiceWrittenOff
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskInProgress || s == TaskCompleted
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ReportType is the research series a content report belongs to.
type ReportType string

const (
	ReportWILTW  ReportType = "WILTW"
	ReportWATMTU ReportType = "WATMTU"
	ReportOther  ReportType = "other"
)

const (
	SourcePDF    = "pdf"
	SourceURL    = "url"
	SourceManual = "manual"
)

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

const (
	RatingUp   = "up"
	RatingDown = "down"
)
