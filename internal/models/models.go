package models

import "time"

type CaseStatus string

const (
	StatusNew      CaseStatus = "NEW"
	StatusAnalyzed CaseStatus = "ANALYZED"
	StatusResolved CaseStatus = "RESOLVED"
	StatusClosed   CaseStatus = "CLOSED"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank orders priorities for the ops queue. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

type DisputeCase struct {
	ID               int64      `json:"id"`
	CustomerID       *int64     `json:"customer_id"`
	Description      string     `json:"description"`
	Amount           float64    `json:"amount"`
	MerchantCategory string     `json:"merchant_category"`
	Status           CaseStatus `json:"status"`
	Priority         Priority   `json:"priority"`
	AssignedOps      *int64     `json:"assigned_ops"`
	AssignedOpsName  string     `json:"assigned_ops_name,omitempty"`
	RoutingReason    string     `json:"routing_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewDisputeCase returns a case carrying the persisted defaults.
func NewDisputeCase(customerID *int64, description string, amount float64, category string) DisputeCase {
	return DisputeCase{
		CustomerID:       customerID,
		Description:      description,
		Amount:           amount,
		MerchantCategory: category,
		Status:           StatusNew,
		Priority:         PriorityMedium,
	}
}

type RiskAnalysis struct {
	ID                int64     `json:"id"`
	CaseID            int64     `json:"case_id"`
	RiskScore         RiskLevel `json:"risk_score"`
	Classification    string    `json:"classification"`
	Summary           string    `json:"summary"`
	FraudSignals      []string  `json:"fraud_signals"`
	ReasoningSteps    []string  `json:"reasoning_steps"`
	RecommendedAction string    `json:"recommended_action"`
	FinancialExposure string    `json:"financial_exposure"`
	Source            string    `json:"source"`
	CreatedAt         time.Time `json:"created_at"`
}

// AnalysisFromVerdict copies a verdict into the persisted analysis record.
func AnalysisFromVerdict(caseID int64, v Verdict) RiskAnalysis {
	return RiskAnalysis{
		CaseID:            caseID,
		RiskScore:         v.RiskLevel,
		Classification:    string(v.Classification),
		Summary:           v.Summary,
		FraudSignals:      append([]string{}, v.FraudSignals...),
		ReasoningSteps:    append([]string{}, v.ReasoningSteps...),
		RecommendedAction: string(v.RecommendedAction),
		FinancialExposure: v.FinancialExposure,
		Source:            v.Source,
	}
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	CaseID         int64     `json:"case_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Message        string    `json:"message"`
	IsInternalNote bool      `json:"is_internal_note"`
	CreatedAt      time.Time `json:"created_at"`
}

// OpsGroup is the group whose members may work the ops queue.
const OpsGroup = "Risk Ops"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
	IsActive bool   `json:"is_active"`
}

type CaseDetails struct {
	Case     DisputeCase   `json:"case"`
	Analysis *RiskAnalysis `json:"analysis"`
	Messages []ChatMessage `json:"messages"`
}

type CountBucket struct {
	Key   string `json:"key"`
	Total int    `json:"total"`
}

type Insights struct {
	TotalCases      int           `json:"total_cases"`
	HighRiskCount   int           `json:"high_risk_count"`
	Categories      []CountBucket `json:"categories"`
	Classifications []CountBucket `json:"classifications"`
}

// QueueItem is a case as listed on the ops queue, with its analysis headline.
type QueueItem struct {
	DisputeCase
	RiskScore      RiskLevel `json:"risk_score,omitempty"`
	Classification string    `json:"classification,omitempty"`
}
