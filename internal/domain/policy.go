package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PolicyAction is the outcome a matched policy prescribes.
type PolicyAction string

const (
	ActionAllow  PolicyAction = "allow"
	ActionStepUp PolicyAction = "stepup"
	ActionDeny   PolicyAction = "deny"
)

// ValidPolicyAction reports whether a is one of the three recognized actions.
func ValidPolicyAction(a PolicyAction) bool {
	return a == ActionAllow || a == ActionStepUp || a == ActionDeny
}

// Conditions is the closed set of predicates a policy may declare. A nil or
// empty field means the predicate is absent and vacuously satisfied.
type Conditions struct {
	MinRiskScore      *float64 `json:"min_risk_score,omitempty"`
	MaxRiskScore      *float64 `json:"max_risk_score,omitempty"`
	AllowedCountries  []string `json:"allowed_countries,omitempty"`
	BlockedCountries  []string `json:"blocked_countries,omitempty"`
	RequiredLocation  *string  `json:"required_location,omitempty"`
	AllowedDevices    []string `json:"allowed_devices,omitempty"`
	BusinessHoursOnly *bool    `json:"business_hours_only,omitempty"`
}

// ParseConditions decodes a raw conditions document, rejecting unknown keys
// and inconsistent bounds so malformed predicates fail at construction time.
func ParseConditions(raw []byte) (Conditions, error) {
	var c Conditions
	if len(raw) == 0 {
		return c, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Conditions{}, fmt.Errorf("parse conditions: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Conditions{}, err
	}
	return c, nil
}

// Validate checks bound consistency and score ranges.
func (c Conditions) Validate() error {
	if c.MinRiskScore != nil && (*c.MinRiskScore < 0 || *c.MinRiskScore > 100) {
		return fmt.Errorf("min_risk_score %v out of range [0,100]", *c.MinRiskScore)
	}
	if c.MaxRiskScore != nil && (*c.MaxRiskScore < 0 || *c.MaxRiskScore > 100) {
		return fmt.Errorf("max_risk_score %v out of range [0,100]", *c.MaxRiskScore)
	}
	if c.MinRiskScore != nil && c.MaxRiskScore != nil && *c.MinRiskScore > *c.MaxRiskScore {
		return fmt.Errorf("min_risk_score %v exceeds max_risk_score %v", *c.MinRiskScore, *c.MaxRiskScore)
	}
	return nil
}

// IsEmpty reports whether no predicate is declared.
func (c Conditions) IsEmpty() bool {
	return c.MinRiskScore == nil && c.MaxRiskScore == nil &&
		len(c.AllowedCountries) == 0 && len(c.BlockedCountries) == 0 &&
		c.RequiredLocation == nil && len(c.AllowedDevices) == 0 &&
		c.BusinessHoursOnly == nil
}

// Policy is a named, prioritized access rule. Lower priority numbers are
// evaluated first.
type Policy struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Conditions  Conditions   `json:"conditions"`
	Action      PolicyAction `json:"action"`
	Priority    int          `json:"priority"`
	Enabled     bool         `json:"enabled"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DefaultPolicyName is the sentinel returned when no policy matches.
const DefaultPolicyName = "default"

// Decision is the resolved outcome of policy evaluation for one attempt.
type Decision struct {
	Action            PolicyAction `json:"action"`
	PolicyName        string       `json:"policy_name"`
	PolicyDescription string       `json:"policy_description,omitempty"`
	Matched           bool         `json:"matched"`
}

// DefaultDecision is the documented no-match outcome. The engine fails open:
// with zero matching enabled policies access is allowed.
func DefaultDecision() Decision {
	return Decision{
		Action:            ActionAllow,
		PolicyName:        DefaultPolicyName,
		PolicyDescription: "no policy matched",
		Matched:           false,
	}
}
