package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/threatintel"
)

// Windows used when deriving the behavior profile from the audit trail.
const (
	profileWindow   = 30 * 24 * time.Hour
	recentWindow    = time.Hour
	sensitiveWindow = 24 * time.Hour

	// An hour of day counts as typical once the user authenticated in it
	// this many times inside the profile window.
	typicalHourMinEvents = 3
)

// AuditRepository persists engine events and serves every trailing-window
// query derived from them: failed attempts, auth velocity, known locations,
// local abuse ratios, reevaluation records and the behavior profile.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates an audit repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// RecordEvent appends one event to the audit trail.
func (r *AuditRepository) RecordEvent(ctx context.Context, e *domain.AuditEvent) error {
	var userID, sessionID *uuid.UUID
	if e.UserID != uuid.Nil {
		userID = &e.UserID
	}
	if e.SessionID != uuid.Nil {
		sessionID = &e.SessionID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_events (id, user_id, session_id, event_type, event_data, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, userID, sessionID, e.EventType, []byte(e.EventData), e.IPAddress, e.UserAgent, e.Timestamp)
	return err
}

// CountFailedAttempts counts failed authentications for the user since the
// given time.
func (r *AuditRepository) CountFailedAttempts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE user_id = $1 AND event_type = $2 AND created_at >= $3`,
		userID, domain.EventAuthFailed, since).Scan(&count)
	return count, err
}

// CountAuthAttempts counts all authentication attempts, successful or not,
// for the user since the given time.
func (r *AuditRepository) CountAuthAttempts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE user_id = $1 AND event_type IN ($2, $3) AND created_at >= $4`,
		userID, domain.EventAuthSuccess, domain.EventAuthFailed, since).Scan(&count)
	return count, err
}

// KnownLocations returns the distinct location displays of the user's
// successful authentications.
func (r *AuditRepository) KnownLocations(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT event_data->>'location'
		FROM audit_events
		WHERE user_id = $1 AND event_type = $2 AND event_data->>'location' IS NOT NULL`,
		userID, domain.EventAuthSuccess)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// AbuseStats returns the suspicious and successful event counts for an IP
// since the given time.
func (r *AuditRepository) AbuseStats(ctx context.Context, ip string, since time.Time) (threatintel.AbuseStats, error) {
	var stats threatintel.AbuseStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type IN ($2, $3, $4)),
			COUNT(*) FILTER (WHERE event_type IN ($5, $6))
		FROM audit_events
		WHERE ip_address = $1 AND created_at >= $7`,
		ip,
		domain.EventAuthFailed, domain.EventAccessDenied, domain.EventSuspiciousActivity,
		domain.EventAuthSuccess, domain.EventAccessGranted,
		since).Scan(&stats.SuspiciousEvents, &stats.SuccessfulEvents)
	return stats, err
}

// RecordReevaluation persists one risk evaluation record.
func (r *AuditRepository) RecordReevaluation(ctx context.Context, eval domain.RiskEvaluation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO risk_evaluations (id, session_id, user_id, risk_score, factors, decision, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		eval.ID, eval.SessionID, eval.UserID, eval.RiskScore, []byte(eval.Factors), eval.Decision, eval.EvaluatedAt)
	return err
}

// CountEvaluations counts the evaluations recorded for a session since the
// given time.
func (r *AuditRepository) CountEvaluations(ctx context.Context, sessionID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM risk_evaluations
		WHERE session_id = $1 AND evaluated_at >= $2`,
		sessionID, since).Scan(&count)
	return count, err
}

// CountActionableEvaluations counts the evaluations whose decision required
// more than passive monitoring.
func (r *AuditRepository) CountActionableEvaluations(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM risk_evaluations
		WHERE session_id = $1 AND decision IN ($2, $3)`,
		sessionID, string(domain.ReevalStepUp), string(domain.ReevalRevoke)).Scan(&count)
	return count, err
}

// LastEvaluationTime returns when the session was last evaluated, or the
// zero time when it never was.
func (r *AuditRepository) LastEvaluationTime(ctx context.Context, sessionID uuid.UUID) (time.Time, error) {
	var last time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT evaluated_at FROM risk_evaluations
		WHERE session_id = $1
		ORDER BY evaluated_at DESC
		LIMIT 1`, sessionID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return last, err
}

// Profile derives the user's behavior profile from the audit trail.
func (r *AuditRepository) Profile(ctx context.Context, userID uuid.UUID) (domain.BehaviorProfile, error) {
	var profile domain.BehaviorProfile
	now := time.Now().UTC()

	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM created_at)::int AS hour
		FROM audit_events
		WHERE user_id = $1 AND event_type = $2 AND created_at >= $3
		GROUP BY hour
		HAVING COUNT(*) >= $4
		ORDER BY hour`,
		userID, domain.EventAuthSuccess, now.Add(-profileWindow), typicalHourMinEvents)
	if err != nil {
		return profile, err
	}
	defer rows.Close()
	for rows.Next() {
		var hour int
		if err := rows.Scan(&hour); err != nil {
			return profile, err
		}
		profile.TypicalHours = append(profile.TypicalHours, hour)
	}
	if err := rows.Err(); err != nil {
		return profile, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $3),
			COUNT(*) / $4::float
		FROM audit_events
		WHERE user_id = $1 AND event_type = $2 AND created_at >= $5`,
		userID, domain.EventAccessGranted,
		now.Add(-recentWindow),
		profileWindow.Hours(),
		now.Add(-profileWindow)).Scan(&profile.RecentAccessCount, &profile.AverageAccessCount)
	if err != nil {
		return profile, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE user_id = $1 AND event_type = $2
		  AND event_data->>'sensitive' = 'true' AND created_at >= $3`,
		userID, domain.EventAccessGranted, now.Add(-sensitiveWindow)).Scan(&profile.SensitiveAccessCount)
	return profile, err
}
