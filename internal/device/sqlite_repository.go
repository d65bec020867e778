package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS devices (
	push_token  TEXT PRIMARY KEY,
	device_id   TEXT,
	brand       TEXT,
	device_name TEXT,
	user_name   TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

// SQLiteRepository is a SQLite implementation of Repository for single-node
// deployments and local development.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (creating if needed) the database at path and
// applies the schema. Use ":memory:" for a throwaway database.
func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Get retrieves a registration by push token.
func (r *SQLiteRepository) Get(ctx context.Context, pushToken string) (*Registration, error) {
	return r.get(ctx, r.db, pushToken)
}

type sqliteQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) get(ctx context.Context, q sqliteQueryer, pushToken string) (*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM devices WHERE push_token = ?`

	reg, err := scanSQLiteRegistration(q.QueryRowContext(ctx, query, pushToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return reg, nil
}

// List retrieves all registrations.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM devices ORDER BY created_at, push_token`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg, err := scanSQLiteRegistration(rows)
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
func (r *SQLiteRepository) Upsert(ctx context.Context, reg *Registration) (*Registration, bool, error) {
	if reg.PushToken == "" {
		return nil, false, ErrEmptyPushToken
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM devices WHERE push_token = ?`, reg.PushToken).Scan(&exists)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (push_token, device_id, brand, device_name, user_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (push_token) DO UPDATE SET
			device_id = excluded.device_id,
			brand = excluded.brand,
			device_name = excluded.device_name,
			user_name = COALESCE(excluded.user_name, devices.user_name),
			updated_at = excluded.updated_at
	`,
		reg.PushToken,
		nullString(reg.DeviceID),
		nullString(reg.Brand),
		nullString(reg.DeviceName),
		nullString(reg.UserName),
		now,
		now,
	)
	if err != nil {
		return nil, false, err
	}

	stored, err := r.get(ctx, tx, reg.PushToken)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return stored, exists == 0, nil
}

// Delete removes a registration.
func (r *SQLiteRepository) Delete(ctx context.Context, pushToken string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE push_token = ?`, pushToken)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRegistration(row sqliteScanner) (*Registration, error) {
	var reg Registration
	var deviceID, brand, deviceName, userName sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&reg.PushToken, &deviceID, &brand, &deviceName, &userName, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	reg.DeviceID = fromNullString(deviceID)
	reg.Brand = fromNullString(brand)
	reg.DeviceName = fromNullString(deviceName)
	reg.UserName = fromNullString(userName)
	reg.CreatedAt = time.UnixMilli(createdAt)
	reg.UpdatedAt = time.UnixMilli(updatedAt)

	return &reg, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// Ensure SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)
