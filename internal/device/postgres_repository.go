package device

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// The devices table is created by the migrations in internal/database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const registrationColumns = `push_token, device_id, brand, device_name, user_name, created_at, updated_at`

// Get retrieves a registration by push token.
func (r *PostgresRepository) Get(ctx context.Context, pushToken string) (*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM devices WHERE push_token = $1`

	reg, err := scanRegistration(r.pool.QueryRow(ctx, query, pushToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return reg, nil
}

// List retrieves all registrations.
func (r *PostgresRepository) List(ctx context.Context) ([]*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM devices ORDER BY created_at, push_token`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return regs, nil
}

// Upsert creates or replaces the registration keyed by its push token.
// A NULL user_name keeps the stored value.
func (r *PostgresRepository) Upsert(ctx context.Context, reg *Registration) (*Registration, bool, error) {
	if reg.PushToken == "" {
		return nil, false, ErrEmptyPushToken
	}

	query := `
		INSERT INTO devices (push_token, device_id, brand, device_name, user_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (push_token) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			brand = EXCLUDED.brand,
			device_name = EXCLUDED.device_name,
			user_name = COALESCE(EXCLUDED.user_name, devices.user_name),
			updated_at = now()
		RETURNING ` + registrationColumns + `, (xmax = 0) AS inserted
	`

	var stored Registration
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		reg.PushToken,
		reg.DeviceID,
		reg.Brand,
		reg.DeviceName,
		reg.UserName,
	).Scan(
		&stored.PushToken,
		&stored.DeviceID,
		&stored.Brand,
		&stored.DeviceName,
		&stored.UserName,
		&stored.CreatedAt,
		&stored.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}

	return &stored, inserted, nil
}

// Delete removes a registration.
func (r *PostgresRepository) Delete(ctx context.Context, pushToken string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE push_token = $1`, pushToken)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(
		&reg.PushToken,
		&reg.DeviceID,
		&reg.Brand,
		&reg.DeviceName,
		&reg.UserName,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
