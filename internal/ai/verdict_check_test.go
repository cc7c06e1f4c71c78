package ai

import (
	"testing"

	"github.com/dispute_triage/backend/internal/models"
)

// verdictComplete reports whether every field carries a value from its vocabulary.
func verdictComplete(v models.Verdict) bool {
	if _, ok := models.NormalizeClassification(string(v.Classification)); !ok {
		return false
	}
	if _, ok := models.NormalizeRiskLevel(string(v.RiskLevel)); !ok {
		return false
	}
	if models.NormalizeAction(string(v.RecommendedAction)) != v.RecommendedAction {
		return false
	}
	return v.Summary != "" && v.FinancialExposure != "" && v.FraudSignals != nil && v.ReasoningSteps != nil
}

func TestVerdictCompleteRejectsGaps(t *testing.T) {
	full := ClassifyHeuristic("charged twice", 10, "Retail")
	if !verdictComplete(full) {
		t.Fatalf("heuristic verdict must be complete: %+v", full)
	}
	gaps := []func(*models.Verdict){
		func(v *models.Verdict) { v.Classification = "Nope" },
		func(v *models.Verdict) { v.RiskLevel = "" },
		func(v *models.Verdict) { v.RecommendedAction = "Manual Review" },
		func(v *models.Verdict) { v.Summary = "" },
		func(v *models.Verdict) { v.FraudSignals = nil },
	}
	for i, gap := range gaps {
		v := full
		gap(&v)
		if verdictComplete(v) {
			t.Fatalf("gap %d not detected: %+v", i, v)
		}
	}
}
