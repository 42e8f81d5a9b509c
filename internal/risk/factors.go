package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilo/platform/internal/domain"
)

// Raw factor scores. Each factor contributes 0-100 before weighting.
const (
	scoreUnknownDevice    = 40
	scoreFirstLocation    = 20
	scoreNewLocation      = 35
	scoreOffHoursWeekday  = 15
	scoreWeekend          = 25
	scoreFewFailures      = 20
	scoreManyFailures     = 50
	scoreElevatedVelocity = 25
	scoreHighVelocity     = 50
)

func (s *Scorer) deviceFactor(ctx context.Context, ac domain.AuthContext) (domain.RiskFactor, error) {
	fingerprint := ac.Device.Fingerprint()

	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	device, err := s.devices.FindByFingerprint(lctx, fingerprint)
	if err != nil {
		return domain.RiskFactor{}, fmt.Errorf("device registry: %w", err)
	}

	f := domain.RiskFactor{Name: domain.FactorDevice, Weight: domain.FactorWeights[domain.FactorDevice]}
	if device != nil {
		f.Score = 0
		f.Detail = fmt.Sprintf("known device: %s", device.Name)
	} else {
		f.Score = scoreUnknownDevice
		f.Detail = "unknown device, first time seen"
	}
	return f, nil
}

func (s *Scorer) locationFactor(ctx context.Context, ac domain.AuthContext) (domain.RiskFactor, error) {
	known, err := s.history.KnownLocations(ctx, ac.UserID)
	if err != nil {
		return domain.RiskFactor{}, fmt.Errorf("known locations: %w", err)
	}

	f := domain.RiskFactor{Name: domain.FactorLocation, Weight: domain.FactorWeights[domain.FactorLocation]}
	current := ac.Location.Display

	if len(known) == 0 {
		f.Score = scoreFirstLocation
		f.Detail = fmt.Sprintf("first recorded location: %s", current)
		return f, nil
	}
	for _, loc := range known {
		if loc == current {
			f.Score = 0
			f.Detail = fmt.Sprintf("known location: %s", current)
			return f, nil
		}
	}
	f.Score = scoreNewLocation
	f.Detail = fmt.Sprintf("new location: %s", current)
	return f, nil
}

func (s *Scorer) timeFactor(_ context.Context, ac domain.AuthContext) (domain.RiskFactor, error) {
	f := domain.RiskFactor{Name: domain.FactorTime, Weight: domain.FactorWeights[domain.FactorTime]}

	t := ac.Timestamp.UTC()
	weekday := t.Weekday() != time.Saturday && t.Weekday() != time.Sunday

	switch {
	case ac.IsBusinessHours && weekday:
		f.Score = 0
		f.Detail = "business hours (Mon-Fri 8-18h)"
	case weekday:
		f.Score = scoreOffHoursWeekday
		f.Detail = "outside business hours"
	default:
		f.Score = scoreWeekend
		f.Detail = "weekend access"
	}
	return f, nil
}

func (s *Scorer) failedAttemptsFactor(ctx context.Context, ac domain.AuthContext) (domain.RiskFactor, error) {
	since := s.now().Add(-failedAttemptsWindow)
	count, err := s.history.CountFailedAttempts(ctx, ac.UserID, since)
	if err != nil {
		return domain.RiskFactor{}, fmt.Errorf("failed attempts: %w", err)
	}

	f := domain.RiskFactor{Name: domain.FactorFailedAttempts, Weight: domain.FactorWeights[domain.FactorFailedAttempts]}
	switch {
	case count == 0:
		f.Score = 0
		f.Detail = "no recent failed attempts"
	case count <= 2:
		f.Score = scoreFewFailures
		f.Detail = fmt.Sprintf("%d failed attempts in the last hour", count)
	default:
		f.Score = scoreManyFailures
		f.Detail = fmt.Sprintf("alert: %d recent failed attempts", count)
	}
	return f, nil
}

func (s *Scorer) velocityFactor(ctx context.Context, ac domain.AuthContext) (domain.RiskFactor, error) {
	since := s.now().Add(-velocityWindow)
	count, err := s.history.CountAuthAttempts(ctx, ac.UserID, since)
	if err != nil {
		return domain.RiskFactor{}, fmt.Errorf("auth attempts: %w", err)
	}

	f := domain.RiskFactor{Name: domain.FactorVelocity, Weight: domain.FactorWeights[domain.FactorVelocity]}
	switch {
	case count <= 2:
		f.Score = 0
		f.Detail = "normal authentication velocity"
	case count <= 5:
		f.Score = scoreElevatedVelocity
		f.Detail = fmt.Sprintf("elevated velocity: %d attempts in 5 min", count)
	default:
		f.Score = scoreHighVelocity
		f.Detail = fmt.Sprintf("alert: possible attack, %d attempts in 5 min", count)
	}
	return f, nil
}
