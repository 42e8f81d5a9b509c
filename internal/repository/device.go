package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/platform/internal/domain"
)

// DeviceRepository implements the device registry the risk scorer consults.
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository creates a device repository.
func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

const deviceColumns = `id, user_id, device_fingerprint, device_name, os, browser, trust_level, last_seen_ip, last_seen_location, first_seen_at, last_seen_at`

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(&d.ID, &d.UserID, &d.Fingerprint, &d.Name, &d.OS, &d.Browser, &d.TrustLevel, &d.LastSeenIP, &d.LastSeenLocation, &d.FirstSeenAt, &d.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByFingerprint returns the device matching the fingerprint, or nil when
// it has never been seen.
func (r *DeviceRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.Device, error) {
	d, err := scanDevice(r.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_fingerprint = $1`, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListByUser returns all devices registered for a user, most recently seen
// first.
func (r *DeviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Device, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY last_seen_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// Upsert registers a device on first sight and refreshes last-seen details on
// every subsequent one. Returns the stored row.
func (r *DeviceRepository) Upsert(ctx context.Context, d *domain.Device) (*domain.Device, error) {
	stored, err := scanDevice(r.pool.QueryRow(ctx, `
		INSERT INTO devices (id, user_id, device_fingerprint, device_name, os, browser, trust_level, last_seen_ip, last_seen_location, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (device_fingerprint) DO UPDATE
		SET last_seen_ip = EXCLUDED.last_seen_ip,
		    last_seen_location = EXCLUDED.last_seen_location,
		    last_seen_at = EXCLUDED.last_seen_at
		RETURNING `+deviceColumns,
		d.ID, d.UserID, d.Fingerprint, d.Name, d.OS, d.Browser, d.TrustLevel, d.LastSeenIP, d.LastSeenLocation, d.FirstSeenAt, d.LastSeenAt))
	if err != nil {
		return nil, err
	}
	return stored, nil
}
