// Package policy resolves risk assessments against the ordered rule set and
// hosts the policy administration service.
package policy

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
)

// Store is the persistence collaborator for policies.
type Store interface {
	List(ctx context.Context) ([]domain.Policy, error)
	ListEnabled(ctx context.Context) ([]domain.Policy, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Policy, error)
	GetByName(ctx context.Context, name string) (*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
	// CreateShifted inserts p after atomically incrementing the priority of
	// every policy at or above p.Priority, all within one transaction.
	CreateShifted(ctx context.Context, p *domain.Policy) error
	Update(ctx context.Context, p *domain.Policy) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// SeedIfEmpty inserts the given policies only when the table holds none,
	// returning the effective enabled set either way.
	SeedIfEmpty(ctx context.Context, defaults []domain.Policy) ([]domain.Policy, error)
}

// Resolver evaluates a risk assessment against the enabled policy set.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a policy resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Evaluate fetches the enabled policies (seeding the documented defaults on
// first use) and resolves the assessment to a decision. Store failures
// degrade to the default allow decision; policy resolution never blocks an
// authentication attempt. This is a deliberate fail-open posture.
func (r *Resolver) Evaluate(ctx context.Context, assessment domain.RiskAssessment) domain.Decision {
	policies, err := r.store.ListEnabled(ctx)
	if err != nil {
		r.logger.Error("policy fetch failed, applying default decision", "error", err)
		return domain.DefaultDecision()
	}

	if len(policies) == 0 {
		policies, err = r.store.SeedIfEmpty(ctx, DefaultPolicies())
		if err != nil {
			r.logger.Error("policy bootstrap failed, applying default decision", "error", err)
			return domain.DefaultDecision()
		}
	}

	return Resolve(policies, assessment.Score, assessment.Context)
}

// Resolve applies first-match-wins over the policies sorted ascending by
// priority. Equal priorities are broken by name ascending, so the outcome is
// deterministic regardless of storage iteration order. Disabled policies
// never match. With no match the default allow decision is returned.
func Resolve(policies []domain.Policy, score float64, ac domain.AuthContext) domain.Decision {
	ordered := make([]domain.Policy, len(policies))
	copy(ordered, policies)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].Name < ordered[j].Name
	})

	for _, p := range ordered {
		if !p.Enabled {
			continue
		}
		if Matches(p, score, ac) {
			return domain.Decision{
				Action:            p.Action,
				PolicyName:        p.Name,
				PolicyDescription: p.Description,
				Matched:           true,
			}
		}
	}
	return domain.DefaultDecision()
}
