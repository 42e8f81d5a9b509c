package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilo/platform/internal/domain"
)

type fakeDevices struct {
	device *domain.Device
	err    error
}

func (f fakeDevices) FindByFingerprint(context.Context, string) (*domain.Device, error) {
	return f.device, f.err
}

type fakeLocations struct {
	loc domain.Geolocation
	err error
}

func (f fakeLocations) Resolve(context.Context, string) (domain.Geolocation, error) {
	return f.loc, f.err
}

type fakeHistory struct {
	failed    int
	attempts  int
	locations []string
	err       error
}

func (f fakeHistory) CountFailedAttempts(context.Context, uuid.UUID, time.Time) (int, error) {
	return f.failed, f.err
}

func (f fakeHistory) CountAuthAttempts(context.Context, uuid.UUID, time.Time) (int, error) {
	return f.attempts, f.err
}

func (f fakeHistory) KnownLocations(context.Context, uuid.UUID) ([]string, error) {
	return f.locations, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Monday 10:00 UTC, inside business hours.
var businessHoursNow = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestScorer(devices DeviceRegistry, locations LocationResolver, history History, now time.Time) *Scorer {
	s := NewScorer(devices, locations, history, discardLogger())
	s.now = func() time.Time { return now }
	return s
}

func testContext(s *Scorer, userID uuid.UUID) domain.AuthContext {
	return s.BuildContext(context.Background(), userID, "203.0.113.5", "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0")
}

func TestEvaluateTrustedContext(t *testing.T) {
	known := &domain.Device{Name: "Firefox on Linux"}
	s := newTestScorer(
		fakeDevices{device: known},
		fakeLocations{loc: domain.Geolocation{Display: "Paris, FR", CountryCode: "FR", Known: true}},
		fakeHistory{locations: []string{"Paris, FR"}},
		businessHoursNow,
	)

	assessment := s.Evaluate(context.Background(), testContext(s, uuid.New()))

	assert.Equal(t, 0.0, assessment.Score)
	assert.Equal(t, domain.RiskLow, assessment.Level)
	require.Len(t, assessment.Factors, 5)
	for name, f := range assessment.Factors {
		assert.Equal(t, 0.0, f.Score, "factor %s", name)
		assert.Equal(t, domain.FactorWeights[name], f.Weight, "factor %s", name)
	}
}

func TestEvaluateUnknownDeviceNewLocationOffHours(t *testing.T) {
	// Monday 22:00 UTC: a weekday outside business hours.
	offHours := time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC)
	s := newTestScorer(
		fakeDevices{},
		fakeLocations{loc: domain.Geolocation{Display: "Berlin, DE", CountryCode: "DE", Known: true}},
		fakeHistory{locations: []string{"Paris, FR"}},
		offHours,
	)

	assessment := s.Evaluate(context.Background(), testContext(s, uuid.New()))

	// device 40*0.30 + location 35*0.25 + time 15*0.20 = 23.75
	assert.InDelta(t, 23.75, assessment.Score, 1e-9)
	assert.Equal(t, domain.RiskLow, assessment.Level)
	assert.Equal(t, 40.0, assessment.Factors[domain.FactorDevice].Score)
	assert.Equal(t, 35.0, assessment.Factors[domain.FactorLocation].Score)
	assert.Equal(t, 15.0, assessment.Factors[domain.FactorTime].Score)
}

func TestEvaluateHostileContext(t *testing.T) {
	// Saturday noon with a failure storm and rapid-fire attempts.
	weekend := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	s := newTestScorer(
		fakeDevices{},
		fakeLocations{loc: domain.Geolocation{Display: "Minsk, BY", CountryCode: "BY", Known: true}},
		fakeHistory{failed: 7, attempts: 9, locations: []string{"Paris, FR"}},
		weekend,
	)

	assessment := s.Evaluate(context.Background(), testContext(s, uuid.New()))

	// 40*0.30 + 35*0.25 + 25*0.20 + 50*0.15 + 50*0.10 = 38.25
	assert.InDelta(t, 38.25, assessment.Score, 1e-9)
	assert.Equal(t, 50.0, assessment.Factors[domain.FactorFailedAttempts].Score)
	assert.Equal(t, 50.0, assessment.Factors[domain.FactorVelocity].Score)
	assert.Equal(t, 25.0, assessment.Factors[domain.FactorTime].Score)
}

func TestEvaluateFewFailuresAndElevatedVelocity(t *testing.T) {
	s := newTestScorer(
		fakeDevices{device: &domain.Device{Name: "Firefox on Linux"}},
		fakeLocations{loc: domain.Geolocation{Display: "Paris, FR", Known: true}},
		fakeHistory{failed: 2, attempts: 4, locations: []string{"Paris, FR"}},
		businessHoursNow,
	)

	assessment := s.Evaluate(context.Background(), testContext(s, uuid.New()))

	assert.Equal(t, 20.0, assessment.Factors[domain.FactorFailedAttempts].Score)
	assert.Equal(t, 25.0, assessment.Factors[domain.FactorVelocity].Score)
	// 20*0.15 + 25*0.10 = 5.5
	assert.InDelta(t, 5.5, assessment.Score, 1e-9)
}

func TestEvaluateFirstRecordedLocation(t *testing.T) {
	s := newTestScorer(
		fakeDevices{device: &domain.Device{Name: "Firefox on Linux"}},
		fakeLocations{loc: domain.Geolocation{Display: "Paris, FR", Known: true}},
		fakeHistory{},
		businessHoursNow,
	)

	assessment := s.Evaluate(context.Background(), testContext(s, uuid.New()))
	assert.Equal(t, 20.0, assessment.Factors[domain.FactorLocation].Score)
}

func TestEvaluateDegradesToNeutralOnCollaboratorFailure(t *testing.T) {
	s := newTestScorer(
		fakeDevices{err: errors.New("registry down")},
		fakeLocations{err: errors.New("resolver down")},
		fakeHistory{err: errors.New("audit down")},
		businessHoursNow,
	)

	assessment := s.Evaluate(context.Background(), testContext(s, uuid.New()))

	// Only the time factor has no external dependency; in business hours it
	// scores zero, so the whole assessment degrades to zero.
	assert.Equal(t, 0.0, assessment.Score)
	assert.Equal(t, domain.RiskLow, assessment.Level)
	for _, name := range []string{domain.FactorDevice, domain.FactorLocation, domain.FactorFailedAttempts, domain.FactorVelocity} {
		assert.Equal(t, 0.0, assessment.Factors[name].Score, "factor %s", name)
	}
}

func TestBuildContextResolvesLocation(t *testing.T) {
	loc := domain.Geolocation{Display: "Paris, FR", CountryCode: "FR", Latitude: 48.85, Longitude: 2.35, Known: true}
	s := newTestScorer(fakeDevices{}, fakeLocations{loc: loc}, fakeHistory{}, businessHoursNow)

	ac := testContext(s, uuid.New())
	assert.Equal(t, loc, ac.Location)
	assert.True(t, ac.IsBusinessHours)
	assert.Equal(t, "Firefox", ac.Device.Browser)
	assert.Equal(t, "Linux", ac.Device.OS)
}

func TestBuildContextFallbackLocation(t *testing.T) {
	s := newTestScorer(fakeDevices{}, fakeLocations{err: errors.New("lookup failed")}, fakeHistory{}, businessHoursNow)

	ac := testContext(s, uuid.New())
	assert.False(t, ac.Location.Known)
	assert.Equal(t, "IP: 203.0.113.5", ac.Location.Display)
}

func TestBuildContextNilResolver(t *testing.T) {
	s := newTestScorer(fakeDevices{}, nil, fakeHistory{}, businessHoursNow)

	ac := testContext(s, uuid.New())
	assert.False(t, ac.Location.Known)
	assert.Equal(t, "IP: 203.0.113.5", ac.Location.Display)
}
