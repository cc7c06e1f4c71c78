package ai

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/dispute_triage/backend/internal/models"
)

const (
	FallbackInert         = "inert"
	FallbackProviderError = "provider_error"
	FallbackParseError    = "parse_error"
)

// Recorder receives one observation per analysis.
type Recorder interface {
	ObserveAnalysis(source string, fallbackReason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAnalysis(string, string) {}

// Agent classifies disputes with the configured provider and falls back to the
// heuristic classifier on any provider or parse failure. A nil Provider makes
// the agent heuristic-only.
type Agent struct {
	Provider Provider
	Logger   zerolog.Logger
	Recorder Recorder
}

func NewAgent(provider Provider, logger zerolog.Logger, recorder Recorder) *Agent {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Agent{Provider: provider, Logger: logger, Recorder: recorder}
}

func (a *Agent) Analyze(ctx context.Context, in DisputeInput) models.Verdict {
	if a.Provider == nil {
		return a.fallback(in, FallbackInert)
	}

	raw, err := a.Provider.Invoke(ctx, in)
	if err != nil {
		ev := a.Logger.Warn().Err(err).Str("provider", a.Provider.Name())
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode > 0 {
			ev = ev.Int("status", pe.StatusCode)
		}
		ev.Msg("llm provider failed, falling back to heuristic analysis")
		return a.fallback(in, FallbackProviderError)
	}

	v, err := ParseVerdict(raw)
	if err != nil {
		a.Logger.Warn().Err(err).
			Str("provider", a.Provider.Name()).
			Int("raw_len", len(raw)).
			Str("raw_head", head(raw, 100)).
			Msg("llm response unparseable, falling back to heuristic analysis")
		return a.fallback(in, FallbackParseError)
	}
	v.Source = a.Provider.Name()
	a.recorder().ObserveAnalysis(v.Source, "")
	return v
}

func (a *Agent) fallback(in DisputeInput, reason string) models.Verdict {
	v := ClassifyHeuristic(in.Text, in.Amount, in.Category)
	a.recorder().ObserveAnalysis(v.Source, reason)
	return v
}

func (a *Agent) recorder() Recorder {
	if a.Recorder == nil {
		return nopRecorder{}
	}
	return a.Recorder
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
