package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vigilo/platform/internal/domain"
)

const (
	// Implied travel speed above this is physically impossible.
	impossibleTravelKMH = 800.0
	// Location changes beyond this distance are anomalous even when the
	// implied speed is plausible.
	locationDriftKM = 100.0
	// Access frequency this many times above the historical average is
	// flagged as behavioral.
	accessFrequencyFactor = 3.0
	// Repeated sensitive-resource access beyond this count is flagged.
	sensitiveAccessLimit = 5
)

// detectAnomalies compares the updated context against the session's last
// known context. Unparseable inputs degrade to "no anomaly": detection never
// fails a reevaluation.
func (m *Monitor) detectAnomalies(ctx context.Context, session *domain.Session, update domain.ContextUpdate, now time.Time) []domain.Anomaly {
	var anomalies []domain.Anomaly

	if a, ok := detectTravelAnomaly(session, update.Location, now); ok {
		anomalies = append(anomalies, a)
	}
	if update.IPAddress != "" && update.IPAddress != session.IPAddress {
		anomalies = append(anomalies, domain.Anomaly{
			Kind:        domain.AnomalyIPChange,
			Description: fmt.Sprintf("IP address changed: %s -> %s", session.IPAddress, update.IPAddress),
		})
	}
	if update.UserAgent != "" && session.UserAgent != "" && update.UserAgent != session.UserAgent {
		anomalies = append(anomalies, domain.Anomaly{
			Kind:        domain.AnomalyDeviceChange,
			Description: "user agent changed during session",
		})
	}
	anomalies = append(anomalies, m.detectBehavioralAnomalies(ctx, session, now)...)

	return anomalies
}

// detectTravelAnomaly checks geovelocity between the stored and updated
// locations. Impossible travel wins over plain drift; at most one travel
// anomaly is reported per reevaluation.
func detectTravelAnomaly(session *domain.Session, newLocation string, now time.Time) (domain.Anomaly, bool) {
	if newLocation == "" || session.Location == "" {
		return domain.Anomaly{}, false
	}
	oldLat, oldLon, ok := domain.ParseCoordinates(session.Location)
	if !ok {
		return domain.Anomaly{}, false
	}
	newLat, newLon, ok := domain.ParseCoordinates(newLocation)
	if !ok {
		return domain.Anomaly{}, false
	}

	distance := haversineKM(oldLat, oldLon, newLat, newLon)
	elapsedHours := now.Sub(session.CreatedAt).Hours()

	if elapsedHours > 0 {
		velocity := distance / elapsedHours
		if velocity > impossibleTravelKMH {
			return domain.Anomaly{
				Kind:        domain.AnomalyImpossibleTravel,
				Description: fmt.Sprintf("impossible travel: %.0f km/h", velocity),
				Magnitude:   velocity,
			}, true
		}
	}
	if distance > locationDriftKM {
		return domain.Anomaly{
			Kind:        domain.AnomalyLocationDrift,
			Description: fmt.Sprintf("significant location change: %.0f km", distance),
			Magnitude:   distance,
		}, true
	}
	return domain.Anomaly{}, false
}

// detectBehavioralAnomalies flags deviations from the user's historical
// pattern. An unavailable behavior collaborator degrades to no anomalies.
func (m *Monitor) detectBehavioralAnomalies(ctx context.Context, session *domain.Session, now time.Time) []domain.Anomaly {
	if m.behavior == nil {
		return nil
	}
	profile, err := m.behavior.Profile(ctx, session.UserID)
	if err != nil {
		m.logger.Warn("behavior profile unavailable", "user_id", session.UserID, "error", err)
		return nil
	}

	var anomalies []domain.Anomaly

	if len(profile.TypicalHours) > 0 {
		hour := now.UTC().Hour()
		typical := false
		for _, h := range profile.TypicalHours {
			if h == hour {
				typical = true
				break
			}
		}
		if !typical {
			anomalies = append(anomalies, domain.Anomaly{
				Kind:        domain.AnomalyBehavioral,
				Description: fmt.Sprintf("access at unusual hour: %02d:00", hour),
				Magnitude:   float64(hour),
			})
		}
	}

	if profile.AverageAccessCount > 0 &&
		float64(profile.RecentAccessCount) > profile.AverageAccessCount*accessFrequencyFactor {
		anomalies = append(anomalies, domain.Anomaly{
			Kind:        domain.AnomalyBehavioral,
			Description: "abnormally high access frequency",
			Magnitude:   float64(profile.RecentAccessCount),
		})
	}

	if profile.SensitiveAccessCount > sensitiveAccessLimit {
		anomalies = append(anomalies, domain.Anomaly{
			Kind:        domain.AnomalyBehavioral,
			Description: "multiple sensitive resource access attempts",
			Magnitude:   float64(profile.SensitiveAccessCount),
		})
	}

	return anomalies
}

const earthRadiusKM = 6371.0

// haversineKM returns the great-circle distance between two coordinates.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
