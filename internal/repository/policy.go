package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/platform/internal/domain"
)

// PolicyRepository implements policy.Store on Postgres. Conditions are
// stored as JSONB and revalidated on read.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository creates a policy repository.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

const policyColumns = `id, name, description, conditions, action, priority, enabled, created_at, updated_at`

func scanPolicy(row pgx.Row) (*domain.Policy, error) {
	var (
		p   domain.Policy
		raw []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &raw, &p.Action, &p.Priority, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions for %s: %w", p.Name, err)
	}
	return &p, nil
}

func (r *PolicyRepository) list(ctx context.Context, query string) ([]domain.Policy, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// List returns all policies ordered by priority, then name.
func (r *PolicyRepository) List(ctx context.Context) ([]domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyColumns+` FROM policies ORDER BY priority ASC, name ASC`)
}

// ListEnabled returns the enabled policies ordered by priority, then name.
func (r *PolicyRepository) ListEnabled(ctx context.Context) ([]domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyColumns+` FROM policies WHERE enabled = true ORDER BY priority ASC, name ASC`)
}

// Get returns one policy by id, or nil when absent.
func (r *PolicyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Policy, error) {
	p, err := scanPolicy(r.pool.QueryRow(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetByName returns one policy by name, or nil when absent.
func (r *PolicyRepository) GetByName(ctx context.Context, name string) (*domain.Policy, error) {
	p, err := scanPolicy(r.pool.QueryRow(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func insertPolicy(ctx context.Context, db DBTX, p *domain.Policy) error {
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO policies (id, name, description, conditions, action, priority, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Description, conditions, p.Action, p.Priority, p.Enabled, p.CreatedAt, p.UpdatedAt)
	return err
}

// Create inserts a new policy.
func (r *PolicyRepository) Create(ctx context.Context, p *domain.Policy) error {
	return insertPolicy(ctx, r.pool, p)
}

// CreateShifted inserts p after bumping the priority of every policy at or
// above p.Priority. Shift and insert share one transaction, so no reader
// ever observes two policies on the same priority.
func (r *PolicyRepository) CreateShifted(ctx context.Context, p *domain.Policy) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE policies SET priority = priority + 1, updated_at = now() WHERE priority >= $1`,
		p.Priority); err != nil {
		return err
	}
	if err := insertPolicy(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update rewrites all mutable fields of a policy.
func (r *PolicyRepository) Update(ctx context.Context, p *domain.Policy) error {
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE policies
		SET description = $2, conditions = $3, action = $4, priority = $5, enabled = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Description, conditions, p.Action, p.Priority, p.Enabled, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("policy", p.ID.String())
	}
	return nil
}

// Delete removes a policy, reporting whether a row was deleted.
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SeedIfEmpty inserts defaults only when the table holds no policies at all,
// then returns the enabled set. The count check and inserts run in one
// transaction so concurrent bootstrap attempts cannot double-seed.
func (r *PolicyRepository) SeedIfEmpty(ctx context.Context, defaults []domain.Policy) ([]domain.Policy, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM policies`).Scan(&count); err != nil {
		return nil, err
	}
	if count == 0 {
		for i := range defaults {
			if err := insertPolicy(ctx, tx, &defaults[i]); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.ListEnabled(ctx)
}
