package domain

import "time"

// RiskLevel classifies an assessment score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical" // session-health reporting band, score >= 90
)

// Canonical risk factor names.
const (
	FactorDevice         = "device"
	FactorLocation       = "location"
	FactorTime           = "time"
	FactorFailedAttempts = "failed_attempts"
	FactorVelocity       = "velocity"
)

// FactorWeights maps each canonical factor to its weight. The weights sum
// to 1.0 so the total score stays in [0,100].
var FactorWeights = map[string]float64{
	FactorDevice:         0.30,
	FactorLocation:       0.25,
	FactorTime:           0.20,
	FactorFailedAttempts: 0.15,
	FactorVelocity:       0.10,
}

// RiskFactor is one scored dimension of an authentication attempt.
type RiskFactor struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`  // 0-100
	Weight float64 `json:"weight"` // 0-1
	Detail string  `json:"detail"`
}

// Weighted returns the factor's contribution to the total score.
func (f RiskFactor) Weighted() float64 {
	return f.Score * f.Weight
}

// RiskAssessment is the result of scoring one authentication attempt.
type RiskAssessment struct {
	Score       float64               `json:"score"` // 0-100
	Level       RiskLevel             `json:"level"`
	Factors     map[string]RiskFactor `json:"factors"`
	Context     AuthContext           `json:"context"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}

// LevelForScore maps a score to its risk level: low below 40, medium from
// 40 to 74, high at 75 and above.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 75:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// HealthLevelForScore is the session-health variant that splits the high
// band at 90 into critical.
func HealthLevelForScore(score float64) RiskLevel {
	if score >= 90 {
		return RiskCritical
	}
	if score >= 70 {
		return RiskHigh
	}
	if score >= 40 {
		return RiskMedium
	}
	return RiskLow
}

// ClampScore bounds a score to [0,100].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
