package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/platform/internal/domain"
)

// SessionRepository implements the session surfaces of the monitor and the
// threat intelligence gateway.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, device_id, ip_address, user_agent, location, risk_score, created_at, expires_at, revoked`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s        domain.Session
		deviceID *uuid.UUID
	)
	err := row.Scan(&s.ID, &s.UserID, &deviceID, &s.IPAddress, &s.UserAgent, &s.Location, &s.RiskScore, &s.CreatedAt, &s.ExpiresAt, &s.Revoked)
	if err != nil {
		return nil, err
	}
	if deviceID != nil {
		s.DeviceID = *deviceID
	}
	return &s, nil
}

// Get returns one session by id, or nil when absent.
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	var deviceID *uuid.UUID
	if s.DeviceID != uuid.Nil {
		deviceID = &s.DeviceID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, device_id, ip_address, user_agent, location, risk_score, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, deviceID, s.IPAddress, s.UserAgent, s.Location, s.RiskScore, s.CreatedAt, s.ExpiresAt, s.Revoked)
	return err
}

// Update rewrites the mutable fields the engine adjusts.
func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET ip_address = $2, user_agent = $3, location = $4, risk_score = $5, revoked = $6
		WHERE id = $1`,
		s.ID, s.IPAddress, s.UserAgent, s.Location, s.RiskScore, s.Revoked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("session", s.ID.String())
	}
	return nil
}

// Revoke marks the session revoked. Revoking an already revoked or absent
// session is a no-op.
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET revoked = true WHERE id = $1`, id)
	return err
}

// ListActive returns non-revoked, non-expired sessions with risk score at or
// above minRisk, highest risk first.
func (r *SessionRepository) ListActive(ctx context.Context, minRisk float64) ([]domain.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE revoked = false AND expires_at > now() AND risk_score >= $1
		ORDER BY risk_score DESC, created_at ASC`, minRisk)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
