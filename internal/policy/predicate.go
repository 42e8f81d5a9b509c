package policy

import (
	"github.com/vigilo/platform/internal/domain"
)

// Predicate is one compiled policy condition. A policy matches when every
// predicate it declares holds; absent predicates are vacuously satisfied.
type Predicate interface {
	Name() string
	Holds(score float64, ac domain.AuthContext) bool
}

type minScore struct{ v float64 }

func (p minScore) Name() string { return "min_risk_score" }
func (p minScore) Holds(score float64, _ domain.AuthContext) bool {
	return score >= p.v
}

type maxScore struct{ v float64 }

func (p maxScore) Name() string { return "max_risk_score" }
func (p maxScore) Holds(score float64, _ domain.AuthContext) bool {
	return score <= p.v
}

// allowedCountries fires for attempts from OUTSIDE the allowlist: a policy
// declaring it applies its action to foreign traffic. An unresolved country
// counts as foreign.
type allowedCountries struct{ set map[string]struct{} }

func (p allowedCountries) Name() string { return "allowed_countries" }
func (p allowedCountries) Holds(_ float64, ac domain.AuthContext) bool {
	_, ok := p.set[ac.Location.CountryCode]
	return !ok
}

// blockedCountries fires for attempts from a listed country.
type blockedCountries struct{ set map[string]struct{} }

func (p blockedCountries) Name() string { return "blocked_countries" }
func (p blockedCountries) Holds(_ float64, ac domain.AuthContext) bool {
	_, blocked := p.set[ac.Location.CountryCode]
	return blocked
}

type requiredLocation struct{ v string }

func (p requiredLocation) Name() string { return "required_location" }
func (p requiredLocation) Holds(_ float64, ac domain.AuthContext) bool {
	return ac.Location.Display == p.v
}

type allowedDevices struct{ set map[string]struct{} }

func (p allowedDevices) Name() string { return "allowed_devices" }
func (p allowedDevices) Holds(_ float64, ac domain.AuthContext) bool {
	_, ok := p.set[ac.Device.DeviceType]
	return ok
}

type businessHoursOnly struct{}

func (p businessHoursOnly) Name() string { return "business_hours_only" }
func (p businessHoursOnly) Holds(_ float64, ac domain.AuthContext) bool {
	return ac.IsBusinessHours
}

// Compile turns a validated condition set into its predicate list. The
// Conditions type is closed, so compilation cannot fail once the set passed
// domain.Conditions.Validate.
func Compile(c domain.Conditions) []Predicate {
	var preds []Predicate
	if c.MinRiskScore != nil {
		preds = append(preds, minScore{*c.MinRiskScore})
	}
	if c.MaxRiskScore != nil {
		preds = append(preds, maxScore{*c.MaxRiskScore})
	}
	if len(c.AllowedCountries) > 0 {
		preds = append(preds, allowedCountries{toSet(c.AllowedCountries)})
	}
	if len(c.BlockedCountries) > 0 {
		preds = append(preds, blockedCountries{toSet(c.BlockedCountries)})
	}
	if c.RequiredLocation != nil {
		preds = append(preds, requiredLocation{*c.RequiredLocation})
	}
	if len(c.AllowedDevices) > 0 {
		preds = append(preds, allowedDevices{toSet(c.AllowedDevices)})
	}
	if c.BusinessHoursOnly != nil && *c.BusinessHoursOnly {
		preds = append(preds, businessHoursOnly{})
	}
	return preds
}

// Matches reports whether every predicate the policy declares holds for the
// given score and context.
func Matches(p domain.Policy, score float64, ac domain.AuthContext) bool {
	for _, pred := range Compile(p.Conditions) {
		if !pred.Holds(score, ac) {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
