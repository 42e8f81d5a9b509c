// Package risk computes the weighted multi-factor risk score for an
// authentication attempt. Scoring sits in the authentication critical path:
// every collaborator failure degrades to a neutral factor and the assessment
// is always returned.
package risk

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
)

// DeviceRegistry looks up known device fingerprints.
type DeviceRegistry interface {
	// FindByFingerprint returns nil without error when the fingerprint is unknown.
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.Device, error)
}

// LocationResolver resolves a source IP to a geolocation.
type LocationResolver interface {
	Resolve(ctx context.Context, ip string) (domain.Geolocation, error)
}

// History exposes the trailing audit windows the factor evaluators consume.
type History interface {
	CountFailedAttempts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountAuthAttempts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	KnownLocations(ctx context.Context, userID uuid.UUID) ([]string, error)
}

const (
	failedAttemptsWindow = time.Hour
	velocityWindow       = 5 * time.Minute

	// External lookups are bounded so a slow provider cannot stall a login.
	lookupTimeout = 3 * time.Second
)

// Scorer evaluates authentication context against the five canonical factors.
type Scorer struct {
	devices   DeviceRegistry
	locations LocationResolver
	history   History
	logger    *slog.Logger
	now       func() time.Time
}

// NewScorer creates a risk scorer.
func NewScorer(devices DeviceRegistry, locations LocationResolver, history History, logger *slog.Logger) *Scorer {
	return &Scorer{
		devices:   devices,
		locations: locations,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildContext assembles the immutable AuthContext for one attempt. The
// geolocation lookup is bounded; on failure the location degrades to an
// unknown location with a usable display string.
func (s *Scorer) BuildContext(ctx context.Context, userID uuid.UUID, ip, userAgent string) domain.AuthContext {
	now := s.now().UTC()

	loc := domain.Geolocation{Display: domain.FallbackLocationDisplay(ip)}
	if s.locations != nil {
		lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		resolved, err := s.locations.Resolve(lctx, ip)
		cancel()
		if err != nil {
			s.logger.Warn("geolocation lookup degraded", "ip", ip, "error", err)
		} else {
			loc = resolved
		}
	}

	return domain.AuthContext{
		UserID:          userID,
		IPAddress:       ip,
		Device:          domain.ParseUserAgent(userAgent),
		Location:        loc,
		Timestamp:       now,
		IsBusinessHours: domain.InBusinessHours(now),
	}
}

// Evaluate scores the attempt across all five factors and returns the
// assessment. It never fails: factors whose data source is unavailable are
// replaced by their neutral value.
func (s *Scorer) Evaluate(ctx context.Context, ac domain.AuthContext) domain.RiskAssessment {
	factors := map[string]domain.RiskFactor{
		domain.FactorDevice:         s.scoreOrNeutral(ctx, ac, domain.FactorDevice, s.deviceFactor),
		domain.FactorLocation:       s.scoreOrNeutral(ctx, ac, domain.FactorLocation, s.locationFactor),
		domain.FactorTime:           s.scoreOrNeutral(ctx, ac, domain.FactorTime, s.timeFactor),
		domain.FactorFailedAttempts: s.scoreOrNeutral(ctx, ac, domain.FactorFailedAttempts, s.failedAttemptsFactor),
		domain.FactorVelocity:       s.scoreOrNeutral(ctx, ac, domain.FactorVelocity, s.velocityFactor),
	}

	var total float64
	for _, f := range factors {
		total += f.Weighted()
	}
	total = domain.ClampScore(total)

	return domain.RiskAssessment{
		Score:       total,
		Level:       domain.LevelForScore(total),
		Factors:     factors,
		Context:     ac,
		EvaluatedAt: s.now().UTC(),
	}
}

type factorFunc func(ctx context.Context, ac domain.AuthContext) (domain.RiskFactor, error)

// scoreOrNeutral runs one factor evaluator and substitutes the neutral
// factor when the evaluator's data source fails.
func (s *Scorer) scoreOrNeutral(ctx context.Context, ac domain.AuthContext, name string, eval factorFunc) domain.RiskFactor {
	f, err := eval(ctx, ac)
	if err != nil {
		s.logger.Warn("risk factor degraded to neutral", "factor", name, "error", err)
		return neutralFactor(name)
	}
	f.Score = domain.ClampScore(f.Score)
	return f
}

// neutralFactor is the documented degraded value: score 0 so an unavailable
// data source never inflates risk or blocks a login.
func neutralFactor(name string) domain.RiskFactor {
	return domain.RiskFactor{
		Name:   name,
		Score:  0,
		Weight: domain.FactorWeights[name],
		Detail: "data source unavailable, neutral score applied",
	}
}
