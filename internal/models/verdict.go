package models

import "strings"

type Classification string

const (
	ClassUnauthorized Classification = "Unauthorized Transaction"
	ClassSubscription Classification = "Subscription Confusion"
	ClassMerchant     Classification = "Merchant Dispute"
	ClassRefundAbuse  Classification = "Refund Abuse"
	ClassDuplicate    Classification = "Duplicate Charge"
	ClassUnknown      Classification = "Unknown"
	ClassSystemError  Classification = "System Error"
)

var Classifications = []Classification{
	ClassUnauthorized,
	ClassSubscription,
	ClassMerchant,
	ClassRefundAbuse,
	ClassDuplicate,
	ClassUnknown,
	ClassSystemError,
}

// NormalizeClassification maps free text onto the closed set, case-insensitively.
func NormalizeClassification(value string) (Classification, bool) {
	v := strings.TrimSpace(value)
	for _, c := range Classifications {
		if strings.EqualFold(v, string(c)) {
			return c, true
		}
	}
	return ClassUnknown, false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

func NormalizeRiskLevel(value string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	default:
		return "", false
	}
}

type Action string

const (
	ActionAutoApproveRefund Action = "Auto Approve Refund"
	ActionManualReview      Action = "Manual Review Required"
	ActionRequestDocs       Action = "Request Documentation"
	ActionFlagAccount       Action = "Flag Account"
	ActionFlagAndFreeze     Action = "Flag Account & Freeze Card"
	ActionAutoResolve       Action = "Auto Resolve"
)

var Actions = []Action{
	ActionAutoApproveRefund,
	ActionManualReview,
	ActionRequestDocs,
	ActionFlagAccount,
	ActionFlagAndFreeze,
	ActionAutoResolve,
}

// NormalizeAction folds model output and legacy strings into the action set.
// "Manual Review" and anything unrecognised become ActionManualReview.
func NormalizeAction(value string) Action {
	v := strings.TrimSpace(value)
	for _, a := range Actions {
		if strings.EqualFold(v, string(a)) {
			return a
		}
	}
	switch strings.ToLower(v) {
	case "flag account and freeze card", "flag account & freeze":
		return ActionFlagAndFreeze
	}
	return ActionManualReview
}

const (
	ExposureFull    = "Full Amount"
	ExposurePartial = "Partial"
	ExposureNone    = "None"
	ExposureUnknown = "Unknown"
)

// Verdict is the structured outcome of classifying one dispute.
type Verdict struct {
	Classification    Classification `json:"classification"`
	Summary           string         `json:"summary"`
	FraudSignals      []string       `json:"fraud_signals"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	FinancialExposure string         `json:"financial_exposure"`
	RecommendedAction Action         `json:"recommended_action"`
	ReasoningSteps    []string       `json:"reasoning_steps"`

	// Source names the path that produced the verdict: "heuristic" or a provider.
	Source string `json:"-"`
}
