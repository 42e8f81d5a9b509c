package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
)

// Admin is the policy administration service. All write operations validate
// before touching the store and reject atomically: a failed validation never
// leaves a partial mutation behind.
type Admin struct {
	store Store
}

// NewAdmin creates the policy administration service.
func NewAdmin(store Store) *Admin {
	return &Admin{store: store}
}

// CreateInput holds the fields of a policy create request. Conditions is the
// raw predicate document; unknown keys are rejected.
type CreateInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Conditions    json.RawMessage `json:"conditions"`
	Action        string          `json:"action"`
	Priority      int             `json:"priority"`
	ShiftExisting bool            `json:"shift_existing"` // shift >= priorities up before insert
}

// UpdateInput holds the mutable fields of a policy update. Nil means
// "leave unchanged".
type UpdateInput struct {
	Description *string          `json:"description,omitempty"`
	Conditions  *json.RawMessage `json:"conditions,omitempty"`
	Action      *string          `json:"action,omitempty"`
	Priority    *int             `json:"priority,omitempty"`
	Enabled     *bool            `json:"enabled,omitempty"`
}

// List returns all policies, enabled or not.
func (a *Admin) List(ctx context.Context) ([]domain.Policy, error) {
	policies, err := a.store.List(ctx)
	if err != nil {
		return nil, domain.ErrInternal("list policies", err)
	}
	return policies, nil
}

// Get returns one policy by id.
func (a *Admin) Get(ctx context.Context, id uuid.UUID) (*domain.Policy, error) {
	p, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("get policy", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("policy", id.String())
	}
	return p, nil
}

// Create validates and inserts a new policy. Name must be unique and action
// one of allow, stepup, deny. With ShiftExisting the priorities at or above
// the requested one are reassigned atomically, so no two policies ever share
// a priority visibly during the insert.
func (a *Admin) Create(ctx context.Context, in CreateInput) (*domain.Policy, error) {
	if in.Name == "" {
		return nil, domain.ErrValidation("policy name is required")
	}
	action := domain.PolicyAction(in.Action)
	if !domain.ValidPolicyAction(action) {
		return nil, domain.ErrValidation("action must be 'allow', 'stepup' or 'deny'")
	}
	conditions, err := domain.ParseConditions(in.Conditions)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	existing, err := a.store.GetByName(ctx, in.Name)
	if err != nil {
		return nil, domain.ErrInternal("check policy name", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict(fmt.Sprintf("policy %q already exists", in.Name))
	}

	now := time.Now().UTC()
	p := &domain.Policy{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Conditions:  conditions,
		Action:      action,
		Priority:    in.Priority,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.ShiftExisting {
		err = a.store.CreateShifted(ctx, p)
	} else {
		err = a.store.Create(ctx, p)
	}
	if err != nil {
		return nil, domain.ErrInternal("create policy", err)
	}
	return p, nil
}

// Update validates and applies a partial update to an existing policy.
func (a *Admin) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.Policy, error) {
	p, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Action != nil {
		action := domain.PolicyAction(*in.Action)
		if !domain.ValidPolicyAction(action) {
			return nil, domain.ErrValidation("action must be 'allow', 'stepup' or 'deny'")
		}
		p.Action = action
	}
	if in.Conditions != nil {
		conditions, err := domain.ParseConditions(*in.Conditions)
		if err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		p.Conditions = conditions
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Priority != nil {
		p.Priority = *in.Priority
	}
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}
	p.UpdatedAt = time.Now().UTC()

	if err := a.store.Update(ctx, p); err != nil {
		return nil, domain.ErrInternal("update policy", err)
	}
	return p, nil
}

// Toggle flips a policy's enabled flag.
func (a *Admin) Toggle(ctx context.Context, id uuid.UUID) (*domain.Policy, error) {
	p, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Enabled = !p.Enabled
	p.UpdatedAt = time.Now().UTC()
	if err := a.store.Update(ctx, p); err != nil {
		return nil, domain.ErrInternal("toggle policy", err)
	}
	return p, nil
}

// Delete removes a policy.
func (a *Admin) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := a.store.Delete(ctx, id)
	if err != nil {
		return domain.ErrInternal("delete policy", err)
	}
	if !deleted {
		return domain.ErrNotFound("policy", id.String())
	}
	return nil
}
