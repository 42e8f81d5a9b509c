//go:build integration

package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SeedSession inserts an active session row directly and returns its ID.
func (env *TestEnv) SeedSession(userID uuid.UUID, ip string, riskScore float64) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessionID := uuid.New()
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, ip_address, user_agent, location, risk_score, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, 'Mozilla/5.0 (X11; Linux x86_64)', 'Unknown', $4, now(), now() + interval '8 hours', false)`,
		sessionID, userID, ip, riskScore)
	if err != nil {
		env.t.Fatalf("SeedSession: %v", err)
	}
	return sessionID
}

// SeedAuditEvent inserts an audit event row with the given age.
func (env *TestEnv) SeedAuditEvent(userID uuid.UUID, eventType, ip string, age time.Duration) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx, `
		INSERT INTO audit_events (id, user_id, event_type, event_data, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, '{}', $4, 'Mozilla/5.0 (X11; Linux x86_64)', now() - $5::interval)`,
		uuid.New(), userID, eventType, ip, age.String())
	if err != nil {
		env.t.Fatalf("SeedAuditEvent: %v", err)
	}
}
