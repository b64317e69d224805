package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListDevices backs the read-only device projection exposed by the
// REST management surface (spec.md §6).
func (s *Store) ListDevices(ctx context.Context, limit, offset int) ([]Device, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, public_key, registered_at, last_seen_at, total_steps, total_submissions, status, chain_device_id
		FROM devices ORDER BY registered_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Device{}
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.PublicKey, &d.RegisteredAt, &d.LastSeenAt, &d.TotalSteps, &d.TotalSubmissions, &d.Status, &d.ChainDeviceID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListSubmissions backs the read-only submission projection, optionally
// scoped to one device.
func (s *Store) ListSubmissions(ctx context.Context, deviceID string, limit, offset int) ([]SubmissionRecord, error) {
	query := `
		SELECT id, device_id, step_count, timestamp_ms, firmware_version, battery_percent, raw_acc_samples, signature, verified, received_at, submitted, chain_tx_id
		FROM submissions`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = $1`
		args = append(args, deviceID)
	}
	query += fmt.Sprintf(` ORDER BY received_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SubmissionRecord{}
	for rows.Next() {
		var rec SubmissionRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.StepCount, &rec.TimestampMS, &rec.FirmwareVersion,
			&rec.BatteryPercent, &raw, &rec.Signature, &rec.Verified, &rec.ReceivedAt, &rec.Submitted, &rec.ChainTxID); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.RawAccSamples)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPets backs the read-only pet projection.
func (s *Store) ListPets(ctx context.Context, limit, offset int) ([]PetState, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, device_id, name, level, experience, total_steps, happiness, hunger, health, food, energy,
		       created_at, last_fed_at, last_played_at, cosmetic, chain_pet_id
		FROM pets ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PetState{}
	for rows.Next() {
		var p PetState
		if err := rows.Scan(&p.ID, &p.DeviceID, &p.Name, &p.Level, &p.Experience, &p.TotalSteps,
			&p.Happiness, &p.Hunger, &p.Health, &p.Food, &p.Energy,
			&p.CreatedAt, &p.LastFedAt, &p.LastPlayedAt, &p.Cosmetic, &p.ChainPetID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
