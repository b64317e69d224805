package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
)

// Register is idempotent on deviceId: re-registering an existing
// device id updates last_seen and returns the existing record. A
// public key already bound to a different device id is rejected —
// per spec.md §9's open-question resolution, re-registration under a
// different key is a validation error, not an upsert.
func (s *Store) Register(ctx context.Context, deviceID string, publicKey []byte) (*Device, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := getDeviceTx(ctx, tx, deviceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err == nil {
		if !bytes.Equal(existing.PublicKey, publicKey) {
			return nil, ErrDeviceKeyInUse
		}
		if _, err := tx.ExecContext(ctx, `UPDATE devices SET last_seen_at = now() WHERE id = $1`, deviceID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return getDeviceFresh(ctx, s.DB, deviceID)
	}

	var ownerID string
	row := tx.QueryRowContext(ctx, `SELECT id FROM devices WHERE public_key = $1`, publicKey)
	if scanErr := row.Scan(&ownerID); scanErr == nil && ownerID != deviceID {
		return nil, ErrDeviceKeyInUse
	} else if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		return nil, scanErr
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (id, public_key, status)
		VALUES ($1, $2, $3)`, deviceID, publicKey, DeviceActive)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return getDeviceFresh(ctx, s.DB, deviceID)
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	return getDeviceFresh(ctx, s.DB, deviceID)
}

func (s *Store) Touch(ctx context.Context, deviceID string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE devices SET last_seen_at = now() WHERE id = $1`, deviceID)
	return err
}

func (s *Store) SetChainDeviceID(ctx context.Context, deviceID, chainDeviceID string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE devices SET chain_device_id = $1 WHERE id = $2`, chainDeviceID, deviceID)
	return err
}

type sqlQueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDeviceTx(ctx context.Context, tx sqlQueryRower, deviceID string) (*Device, error) {
	return scanDevice(tx.QueryRowContext(ctx, deviceSelectSQL, deviceID))
}

func getDeviceFresh(ctx context.Context, db sqlQueryRower, deviceID string) (*Device, error) {
	return scanDevice(db.QueryRowContext(ctx, deviceSelectSQL, deviceID))
}

const deviceSelectSQL = `
	SELECT id, public_key, registered_at, last_seen_at, total_steps, total_submissions, status, chain_device_id
	FROM devices WHERE id = $1`

func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	if err := row.Scan(&d.ID, &d.PublicKey, &d.RegisteredAt, &d.LastSeenAt, &d.TotalSteps, &d.TotalSubmissions, &d.Status, &d.ChainDeviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
