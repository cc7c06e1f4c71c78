package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/models"
)

var ErrNoAnalysis = errors.New("case has no risk analysis")

// DefaultNotifyTimeout bounds a notification when TriageService.NotifyTimeout is unset.
const DefaultNotifyTimeout = 5 * time.Second

type CaseStore interface {
	CreateCase(ctx context.Context, c models.DisputeCase, a models.RiskAnalysis) (models.DisputeCase, models.RiskAnalysis, error)
	UpdateRouting(ctx context.Context, caseID int64, fn func(c models.DisputeCase, a *models.RiskAnalysis) (models.DisputeCase, error)) (models.DisputeCase, error)
}

// Notifier tells the ops team about an escalated case.
type Notifier interface {
	NotifyCritical(ctx context.Context, c models.DisputeCase, a models.RiskAnalysis) error
}

type SubmitRequest struct {
	CustomerID  *int64
	Description string
	Amount      float64
	Category    string
}

type TriageService struct {
	Store      CaseStore
	Classifier ai.Classifier
	Router     *Router
	Notifier   Notifier
	Logger     zerolog.Logger

	// NotifyTimeout caps each notification, detached from the request's
	// cancellation. Zero means DefaultNotifyTimeout.
	NotifyTimeout time.Duration
}

// Submit classifies a new dispute, routes it and stores case, analysis,
// priority and assignment together.
func (s *TriageService) Submit(ctx context.Context, req SubmitRequest) (models.DisputeCase, models.RiskAnalysis, error) {
	v := s.Classifier.Analyze(ctx, ai.DisputeInput{
		Text:     req.Description,
		Amount:   req.Amount,
		Category: req.Category,
	})

	c := models.NewDisputeCase(req.CustomerID, req.Description, req.Amount, req.Category)
	c.Status = models.StatusAnalyzed

	decision, err := s.Router.Route(ctx, c, v)
	if err != nil {
		return models.DisputeCase{}, models.RiskAnalysis{}, fmt.Errorf("route case: %w", err)
	}
	c = decision.Apply(c)

	created, analysis, err := s.Store.CreateCase(ctx, c, models.AnalysisFromVerdict(0, v))
	if err != nil {
		return models.DisputeCase{}, models.RiskAnalysis{}, fmt.Errorf("persist case: %w", err)
	}
	created.AssignedOpsName = c.AssignedOpsName

	s.Logger.Info().
		Int64("case_id", created.ID).
		Str("classification", string(v.Classification)).
		Str("risk", string(v.RiskLevel)).
		Str("priority", string(created.Priority)).
		Str("routing", created.RoutingReason).
		Str("source", v.Source).
		Msg("dispute triaged")

	if created.Priority == models.PriorityCritical {
		s.notify(ctx, created, analysis)
	}
	return created, analysis, nil
}

// Reroute applies routing again to a stored case using its stored analysis.
func (s *TriageService) Reroute(ctx context.Context, caseID int64) (models.DisputeCase, error) {
	var (
		analysis    models.RiskAnalysis
		escalated   bool
		assignedNow string
	)
	updated, err := s.Store.UpdateRouting(ctx, caseID, func(c models.DisputeCase, a *models.RiskAnalysis) (models.DisputeCase, error) {
		if a == nil {
			return models.DisputeCase{}, ErrNoAnalysis
		}
		analysis = *a
		decision, err := s.Router.Route(ctx, c, verdictOf(*a))
		if err != nil {
			return models.DisputeCase{}, fmt.Errorf("route case: %w", err)
		}
		next := decision.Apply(c)
		escalated = c.Priority != models.PriorityCritical && next.Priority == models.PriorityCritical
		assignedNow = next.AssignedOpsName
		return next, nil
	})
	if err != nil {
		return models.DisputeCase{}, err
	}
	updated.AssignedOpsName = assignedNow

	s.Logger.Info().
		Int64("case_id", updated.ID).
		Str("priority", string(updated.Priority)).
		Str("routing", updated.RoutingReason).
		Msg("dispute rerouted")

	if escalated {
		s.notify(ctx, updated, analysis)
	}
	return updated, nil
}

func (s *TriageService) notify(ctx context.Context, c models.DisputeCase, a models.RiskAnalysis) {
	if s.Notifier == nil {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Notifier.NotifyCritical(ctx, c, a); err != nil {
		s.Logger.Warn().Err(err).Int64("case_id", c.ID).Msg("critical case notification failed")
	}
}

func verdictOf(a models.RiskAnalysis) models.Verdict {
	classification, _ := models.NormalizeClassification(a.Classification)
	return models.Verdict{
		Classification:    classification,
		Summary:           a.Summary,
		FraudSignals:      a.FraudSignals,
		RiskLevel:         a.RiskScore,
		FinancialExposure: a.FinancialExposure,
		RecommendedAction: models.NormalizeAction(a.RecommendedAction),
		ReasoningSteps:    a.ReasoningSteps,
		Source:            a.Source,
	}
}
