package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/dispute_triage/backend/internal/models"
)

const (
	HeuristicSource     = "heuristic"
	heuristicMarker     = "Running in Heuristic Mode (No/Invalid API Key). checking keywords..."
	highAmountThreshold = 500.0
	refundAbuseAmount   = 200.0
	autoResolveAmount   = 50.0
)

var (
	// "not authoriz" catches denials such as "I did not authorize this purchase".
	fraudKeywords        = []string{"fraud", "stolen", "hack", "unauthorized", "not authoriz", "n't authoriz"}
	subscriptionKeywords = []string{"subscription", "trial", "cancel"}
	refundKeywords       = []string{"refund", "return"}
	duplicateKeywords    = []string{"twice", "double", "duplicate"}
)

type HeuristicClassifier struct{}

func (HeuristicClassifier) Analyze(_ context.Context, in DisputeInput) models.Verdict {
	return ClassifyHeuristic(in.Text, in.Amount, in.Category)
}

// ClassifyHeuristic applies the keyword rules in fixed order, first match wins,
// then the amount threshold.
func ClassifyHeuristic(text string, amount float64, category string) models.Verdict {
	lower := strings.ToLower(text)

	classification := models.ClassUnknown
	risk := models.RiskLow
	action := models.ActionManualReview
	signals := []string{}
	reasoning := []string{heuristicMarker}
	isFraud := false

	switch {
	case containsAny(lower, fraudKeywords):
		classification = models.ClassUnauthorized
		risk = models.RiskHigh
		action = models.ActionFlagAndFreeze
		signals = append(signals, "User claims unauthorized transaction.")
		reasoning = append(reasoning, "Detected high-risk keywords: 'fraud', 'stolen', 'unauthorized'.")
		isFraud = true
	case containsAny(lower, subscriptionKeywords):
		classification = models.ClassSubscription
		risk = models.RiskLow
		action = models.ActionRequestDocs
		if amount < autoResolveAmount {
			action = models.ActionAutoResolve
		}
		reasoning = append(reasoning, "Keywords suggest subscription cancellation issue.")
	case containsAny(lower, refundKeywords):
		classification = models.ClassMerchant
		if amount > refundAbuseAmount {
			classification = models.ClassRefundAbuse
		}
		risk = models.RiskMedium
		action = models.ActionRequestDocs
		reasoning = append(reasoning, "Dispute involves refund request.")
	case containsAny(lower, duplicateKeywords):
		classification = models.ClassDuplicate
		risk = models.RiskLow
		action = models.ActionAutoApproveRefund
		reasoning = append(reasoning, "User claims duplicate charge. Standard error.")
	}

	if amount > highAmountThreshold {
		risk = models.RiskHigh
		signals = append(signals, fmt.Sprintf("High transaction amount ($%.2f)", amount))
		if !isFraud {
			reasoning = append(reasoning, "Transaction exceeds $500 threshold.")
			action = models.ActionManualReview
		}
	}

	return models.Verdict{
		Classification:    classification,
		Summary:           fmt.Sprintf("User is disputing a $%.2f charge from %s. Heuristic analysis suggests '%s'.", amount, category, classification),
		FraudSignals:      signals,
		RiskLevel:         risk,
		FinancialExposure: models.ExposureFull,
		RecommendedAction: action,
		ReasoningSteps:    reasoning,
		Source:            HeuristicSource,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
