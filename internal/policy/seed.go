package policy

import (
	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

// DefaultPolicies returns the three policies seeded when the store is empty
// on first use: deny high risk, step up medium risk, allow low risk.
func DefaultPolicies() []domain.Policy {
	return []domain.Policy{
		{
			ID:          uuid.New(),
			Name:        "high_risk_deny",
			Description: "Deny access when risk is high",
			Conditions:  domain.Conditions{MinRiskScore: floatPtr(75)},
			Action:      domain.ActionDeny,
			Priority:    1,
			Enabled:     true,
		},
		{
			ID:          uuid.New(),
			Name:        "medium_risk_stepup",
			Description: "Require step-up authentication for medium risk",
			Conditions:  domain.Conditions{MinRiskScore: floatPtr(40), MaxRiskScore: floatPtr(74)},
			Action:      domain.ActionStepUp,
			Priority:    2,
			Enabled:     true,
		},
		{
			ID:          uuid.New(),
			Name:        "low_risk_allow",
			Description: "Allow access when risk is low",
			Conditions:  domain.Conditions{MaxRiskScore: floatPtr(39)},
			Action:      domain.ActionAllow,
			Priority:    3,
			Enabled:     true,
		},
	}
}
