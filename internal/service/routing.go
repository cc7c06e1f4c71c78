package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/dispute_triage/backend/internal/models"
)

const (
	SpecialistGroupPrefix = "Specialist: "

	ReasonSpecialistAssigned = "SPECIALIST_ASSIGNED"
	ReasonNoActiveSpecialist = "NO_ACTIVE_SPECIALIST"
)

// Directory resolves specialist pools. A missing group is an empty pool.
type Directory interface {
	ListActiveGroupMembers(ctx context.Context, group string) ([]models.User, error)
}

type RouteDecision struct {
	Priority   models.Priority
	Group      string
	PoolSize   int
	Assignee   *models.User
	ReasonCode string
}

// Router applies priority escalation and specialist assignment. It holds no
// state between calls.
type Router struct {
	Directory Directory
	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

func NewRouter(dir Directory) *Router {
	return &Router{Directory: dir, Pick: rand.IntN}
}

// DecidePriority escalates to CRITICAL on high risk or an unauthorized
// transaction and otherwise keeps the current priority.
func DecidePriority(current models.Priority, v models.Verdict) models.Priority {
	if v.RiskLevel == models.RiskHigh || v.Classification == models.ClassUnauthorized {
		return models.PriorityCritical
	}
	return current
}

func SpecialistGroup(classification models.Classification) string {
	return SpecialistGroupPrefix + string(classification)
}

// PickSpecialist chooses one active member of pool, or nil when there is none.
func PickSpecialist(pool []models.User, pick func(n int) int) *models.User {
	active := filterUsers(pool, func(u models.User) bool { return u.IsActive })
	if len(active) == 0 {
		return nil
	}
	if pick == nil {
		pick = rand.IntN
	}
	idx := pick(len(active))
	if idx < 0 || idx >= len(active) {
		idx = 0
	}
	chosen := active[idx]
	return &chosen
}

func (r *Router) Route(ctx context.Context, c models.DisputeCase, v models.Verdict) (RouteDecision, error) {
	d := RouteDecision{
		Priority: DecidePriority(c.Priority, v),
		Group:    SpecialistGroup(v.Classification),
	}
	pool, err := r.Directory.ListActiveGroupMembers(ctx, d.Group)
	if err != nil {
		return RouteDecision{}, fmt.Errorf("list %q members: %w", d.Group, err)
	}
	d.PoolSize = len(pool)
	d.Assignee = PickSpecialist(pool, r.Pick)
	if d.Assignee != nil {
		d.ReasonCode = ReasonSpecialistAssigned
	} else {
		d.ReasonCode = ReasonNoActiveSpecialist
	}
	return d, nil
}

// Apply returns c with the decision applied. Without an assignee the current
// assignment is kept.
func (d RouteDecision) Apply(c models.DisputeCase) models.DisputeCase {
	c.Priority = d.Priority
	c.RoutingReason = d.ReasonCode
	if d.Assignee != nil {
		id := d.Assignee.ID
		c.AssignedOps = &id
		c.AssignedOpsName = d.Assignee.Username
	}
	return c
}

func filterUsers(users []models.User, keep func(models.User) bool) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}
