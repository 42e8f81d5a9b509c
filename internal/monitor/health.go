package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
)

// Health reports the monitoring state of one session: current risk band,
// anomaly history, next scheduled reevaluation and operator recommendations.
func (m *Monitor) Health(ctx context.Context, sessionID uuid.UUID) (domain.SessionHealth, error) {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.SessionHealth{}, domain.ErrInternal("load session", err)
	}
	if session == nil {
		return domain.SessionHealth{}, domain.ErrNotFound("session", sessionID.String())
	}

	now := m.now().UTC()

	anomalyCount, err := m.recorder.CountActionableEvaluations(ctx, sessionID)
	if err != nil {
		m.logger.Warn("anomaly count unavailable", "session_id", sessionID, "error", err)
		anomalyCount = 0
	}

	lastEval, err := m.recorder.LastEvaluationTime(ctx, sessionID)
	if err != nil || lastEval.IsZero() {
		lastEval = session.CreatedAt
	}

	health := domain.SessionHealth{
		SessionID:        session.ID,
		UserID:           session.UserID,
		IsActive:         session.Active(now),
		RiskScore:        session.RiskScore,
		RiskLevel:        domain.HealthLevelForScore(session.RiskScore),
		LastReevaluation: lastEval,
		NextReevaluation: m.NextReevaluation(session.RiskScore),
		AnomalyCount:     anomalyCount,
	}
	health.Recommendations = recommendations(session, anomalyCount, now)
	return health, nil
}

func recommendations(session *domain.Session, anomalyCount int, now time.Time) []string {
	var recs []string
	switch {
	case session.Revoked:
		recs = append(recs, "session revoked, reauthentication required")
	case session.RiskScore >= 70:
		recs = append(recs, "immediate step-up authentication required")
	case session.RiskScore >= 40:
		recs = append(recs, "monitor activity closely")
	case anomalyCount > 3:
		recs = append(recs, "multiple anomalies detected, consider reevaluation")
	}
	if session.ExpiresAt.Before(now.Add(5 * time.Minute)) {
		recs = append(recs, "session close to expiry")
	}
	return recs
}

// Summary buckets all active sessions by risk band for the monitoring
// dashboard.
func (m *Monitor) Summary(ctx context.Context) (domain.SessionsSummary, error) {
	sessions, err := m.sessions.ListActive(ctx, 0)
	if err != nil {
		return domain.SessionsSummary{}, domain.ErrInternal("list active sessions", err)
	}

	summary := domain.SessionsSummary{
		TotalSessions: len(sessions),
		ByRiskLevel: map[domain.RiskLevel]int{
			domain.RiskLow:      0,
			domain.RiskMedium:   0,
			domain.RiskHigh:     0,
			domain.RiskCritical: 0,
		},
	}

	for _, s := range sessions {
		level := domain.HealthLevelForScore(s.RiskScore)
		summary.ByRiskLevel[level]++
		if level == domain.RiskHigh || level == domain.RiskCritical {
			summary.RequiringAction++
			summary.HighRiskSessions = append(summary.HighRiskSessions, domain.HighRiskSession{
				SessionID: s.ID,
				UserID:    s.UserID,
				RiskScore: s.RiskScore,
				IPAddress: s.IPAddress,
			})
		}
	}
	return summary, nil
}
