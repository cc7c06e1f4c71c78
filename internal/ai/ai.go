package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/dispute_triage/backend/internal/models"
)

type DisputeInput struct {
	Text     string
	Amount   float64
	Category string
}

// Provider is one remote text-generation backend. Invoke returns the raw model
// text; every failure is reported as *ProviderError.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, in DisputeInput) (string, error)
}

// Classifier produces a verdict and never fails.
type Classifier interface {
	Analyze(ctx context.Context, in DisputeInput) models.Verdict
}

type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse verdict: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrEmptyResponse = errors.New("empty response")
	ErrCircuitOpen   = errors.New("circuit open")
)

func providerErr(name string, status int, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: name, StatusCode: status, Err: err}
}
