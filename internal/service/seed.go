package service

import (
	"context"
	"fmt"

	"github.com/dispute_triage/backend/internal/models"
)

const SeedSource = "seed"

type SeedCase struct {
	Description    string
	Amount         float64
	Category       string
	Classification models.Classification
	Risk           models.RiskLevel
}

// SeedCases is the canonical synthetic dataset used for demos and dashboards.
var SeedCases = []SeedCase{
	{"I did not authorize this purchase at Wal-Mart.", 45.00, "Retail", models.ClassUnauthorized, models.RiskHigh},
	{"Netflix charged me twice this month.", 15.99, "Digital Goods", models.ClassDuplicate, models.RiskLow},
	{"The hotel room was dirty and not as described.", 250.00, "Travel & Hospitality", models.ClassMerchant, models.RiskMedium},
	{"I cancelled my subscription but was still charged.", 9.99, "Digital Goods", models.ClassSubscription, models.RiskLow},
	{"Someone stole my card and bought a TV.", 800.00, "Retail", models.ClassUnauthorized, models.RiskHigh},
	{"Food never arrived from Uber Eats.", 35.50, "Food & Beverage", models.ClassMerchant, models.RiskMedium},
	{"I don't recognize this charge from 'SQ *Coffee Shop'.", 4.50, "Food & Beverage", models.ClassUnknown, models.RiskLow},
	{"Refund was promised 10 days ago but never received.", 120.00, "Retail", models.ClassRefundAbuse, models.RiskMedium},
	{"Mistakenly charged for annual plan instead of monthly.", 100.00, "Software", models.ClassSubscription, models.RiskLow},
	{"Suspicious transaction in a country I have never visited.", 1200.00, "Travel & Hospitality", models.ClassUnauthorized, models.RiskHigh},
}

type CaseCreator interface {
	CreateCase(ctx context.Context, c models.DisputeCase, a models.RiskAnalysis) (models.DisputeCase, models.RiskAnalysis, error)
}

// SeedAnalysis builds the stored analysis for a synthetic case. Only high risk
// cases carry fraud signals.
func SeedAnalysis(sc SeedCase) models.RiskAnalysis {
	signals := []string{}
	action := models.ActionAutoResolve
	if sc.Risk == models.RiskHigh {
		signals = []string{"Simulated Signal 1", "Simulated Signal 2"}
		action = models.ActionManualReview
	}
	return models.RiskAnalysis{
		RiskScore:         sc.Risk,
		Classification:    string(sc.Classification),
		Summary:           fmt.Sprintf("Synthetic %s case for $%.2f.", sc.Classification, sc.Amount),
		FraudSignals:      signals,
		ReasoningSteps:    []string{"Step 1: Analyzed text", "Step 2: Checked amount", "Step 3: Assigned risk"},
		RecommendedAction: string(action),
		FinancialExposure: models.ExposureUnknown,
		Source:            SeedSource,
	}
}

// SeedDisputes inserts every canonical case with its analysis and returns how
// many were written.
func SeedDisputes(ctx context.Context, store CaseCreator) (int, error) {
	for i, sc := range SeedCases {
		c := models.NewDisputeCase(nil, sc.Description, sc.Amount, sc.Category)
		c.Status = models.StatusAnalyzed
		if _, _, err := store.CreateCase(ctx, c, SeedAnalysis(sc)); err != nil {
			return i, fmt.Errorf("seed case %d: %w", i+1, err)
		}
	}
	return len(SeedCases), nil
}

type DirectoryAdmin interface {
	EnsureGroup(ctx context.Context, name string) (bool, error)
	EnsureUser(ctx context.Context, username string, isStaff bool) (models.User, bool, error)
	AddUserToGroup(ctx context.Context, userID int64, group string) error
}

// SpecialistClasses are the classifications that get a specialist pool.
var SpecialistClasses = []models.Classification{
	models.ClassUnauthorized,
	models.ClassSubscription,
	models.ClassRefundAbuse,
	models.ClassMerchant,
}

type SpecialistAccount struct {
	Username       string
	Classification models.Classification
}

var SpecialistAccounts = []SpecialistAccount{
	{Username: "ops_unauth", Classification: models.ClassUnauthorized},
	{Username: "ops_sub", Classification: models.ClassSubscription},
	{Username: "ops_refund", Classification: models.ClassRefundAbuse},
}

type SetupReport struct {
	GroupsCreated []string `json:"groups_created"`
	UsersCreated  []string `json:"users_created"`
	Memberships   int      `json:"memberships"`
}

// SetupSpecialists makes sure the ops group, the specialist groups and the
// specialist staff accounts exist. Running it again changes nothing.
func SetupSpecialists(ctx context.Context, dir DirectoryAdmin) (SetupReport, error) {
	report := SetupReport{GroupsCreated: []string{}, UsersCreated: []string{}}

	groups := []string{models.OpsGroup}
	for _, c := range SpecialistClasses {
		groups = append(groups, SpecialistGroup(c))
	}
	for _, name := range groups {
		created, err := dir.EnsureGroup(ctx, name)
		if err != nil {
			return report, fmt.Errorf("ensure group %q: %w", name, err)
		}
		if created {
			report.GroupsCreated = append(report.GroupsCreated, name)
		}
	}

	for _, acct := range SpecialistAccounts {
		u, created, err := dir.EnsureUser(ctx, acct.Username, true)
		if err != nil {
			return report, fmt.Errorf("ensure user %q: %w", acct.Username, err)
		}
		if created {
			report.UsersCreated = append(report.UsersCreated, acct.Username)
		}
		for _, g := range []string{models.OpsGroup, SpecialistGroup(acct.Classification)} {
			if err := dir.AddUserToGroup(ctx, u.ID, g); err != nil {
				return report, fmt.Errorf("add %q to %q: %w", acct.Username, g, err)
			}
			report.Memberships++
		}
	}
	return report, nil
}
