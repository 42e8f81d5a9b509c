package guard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/platform/internal/domain"
)

const (
	MaxStepUpFailures = 5
	LockoutWindow     = 15 * time.Minute
)

// StepUpLockout blocks users who accumulated too many failed step-up
// verifications inside the lockout window, across challenges.
type StepUpLockout struct {
	pool *pgxpool.Pool
}

// NewStepUpLockout creates a lockout guard backed by the audit trail.
func NewStepUpLockout(pool *pgxpool.Pool) *StepUpLockout {
	return &StepUpLockout{pool: pool}
}

// Check returns an error when the user is locked out. Database errors fail
// open so a storage hiccup never blocks verification.
func (l *StepUpLockout) Check(ctx context.Context, userID uuid.UUID) error {
	var count int
	err := l.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE user_id = $1 AND event_type = $2 AND created_at > $3`,
		userID, domain.EventStepUpFailed, time.Now().Add(-LockoutWindow)).Scan(&count)
	if err != nil {
		return nil
	}
	if count >= MaxStepUpFailures {
		return domain.ErrForbidden("too many failed verification attempts, try again later")
	}
	return nil
}
