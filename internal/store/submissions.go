package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
)

// StoreSubmission atomically inserts a verified submission record,
// increments the owning device's cumulative step count, and bumps
// last_seen. Rejects if the device does not exist, and rejects a
// (device, timestamp) pair already stored (spec.md §3).
func (s *Store) StoreSubmission(ctx context.Context, rec SubmissionRecord) (int64, error) {
	samples, err := json.Marshal(rec.RawAccSamples)
	if err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists bool
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM devices WHERE id = $1`, rec.DeviceID)
	if scanErr := row.Scan(&exists); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return 0, ErrDeviceNotRegistered
		}
		return 0, scanErr
	}

	var id int64
	insertRow := tx.QueryRowContext(ctx, `
		INSERT INTO submissions
			(device_id, step_count, timestamp_ms, firmware_version, battery_percent, raw_acc_samples, signature, verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,true)
		RETURNING id`,
		rec.DeviceID, rec.StepCount, rec.TimestampMS, rec.FirmwareVersion, rec.BatteryPercent, samples, rec.Signature)
	if scanErr := insertRow.Scan(&id); scanErr != nil {
		if isUniqueViolation(scanErr) {
			return 0, ErrDuplicate
		}
		return 0, scanErr
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE devices SET total_steps = total_steps + $1, last_seen_at = now() WHERE id = $2`,
		rec.StepCount, rec.DeviceID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListPending returns verified, not-yet-submitted records ordered by
// receive time ascending, optionally scoped to one device.
func (s *Store) ListPending(ctx context.Context, deviceID string) ([]SubmissionRecord, error) {
	query := `
		SELECT id, device_id, step_count, timestamp_ms, firmware_version, battery_percent, raw_acc_samples, signature, verified, received_at, submitted, chain_tx_id
		FROM submissions
		WHERE verified = true AND submitted = false`
	args := []any{}
	if deviceID != "" {
		query += ` AND device_id = $1`
		args = append(args, deviceID)
	}
	query += ` ORDER BY received_at ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkSubmitted flips submitted=true and stores the chain tx handle on
// every listed id in a single transaction, and increments each
// affected device's total_submissions exactly once. Either all ids
// flip or none do.
func (s *Store) MarkSubmitted(ctx context.Context, ids []int64, chainTxID string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE submissions SET submitted = true, chain_tx_id = $1
		WHERE id = ANY($2) AND submitted = false
		RETURNING device_id`, chainTxID, ids)
	if err != nil {
		return err
	}
	affected := map[string]bool{}
	for rows.Next() {
		var deviceID string
		if err := rows.Scan(&deviceID); err != nil {
			rows.Close()
			return err
		}
		affected[deviceID] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for deviceID := range affected {
		if _, err := tx.ExecContext(ctx, `UPDATE devices SET total_submissions = total_submissions + 1 WHERE id = $1`, deviceID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanSubmission(rows *sql.Rows) (SubmissionRecord, error) {
	var rec SubmissionRecord
	var rawSamples []byte
	if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.StepCount, &rec.TimestampMS, &rec.FirmwareVersion,
		&rec.BatteryPercent, &rawSamples, &rec.Signature, &rec.Verified, &rec.ReceivedAt, &rec.Submitted, &rec.ChainTxID); err != nil {
		return rec, err
	}
	if len(rawSamples) > 0 {
		if err := json.Unmarshal(rawSamples, &rec.RawAccSamples); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate key")
}
