package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		level RiskLevel
	}{
		{0, RiskLow},
		{39.9, RiskLow},
		{40, RiskMedium},
		{74, RiskMedium},
		{74.9, RiskMedium},
		{75, RiskHigh},
		{100, RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestHealthLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		level RiskLevel
	}{
		{0, RiskLow},
		{39.9, RiskLow},
		{40, RiskMedium},
		{69.9, RiskMedium},
		{70, RiskHigh},
		{89.9, RiskHigh},
		{90, RiskCritical},
		{100, RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, HealthLevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-5))
	assert.Equal(t, 42.5, ClampScore(42.5))
	assert.Equal(t, 100.0, ClampScore(130))
}

func TestFactorWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range FactorWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRiskFactorWeighted(t *testing.T) {
	f := RiskFactor{Name: FactorDevice, Score: 40, Weight: 0.30}
	assert.InDelta(t, 12.0, f.Weighted(), 1e-9)
}
