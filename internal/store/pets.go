package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const petSelectSQL = `
	SELECT id, device_id, name, level, experience, total_steps, happiness, hunger, health, food, energy,
	       created_at, last_fed_at, last_played_at, cosmetic, chain_pet_id
	FROM pets WHERE device_id = $1`

const petSelectForUpdateSQL = petSelectSQL + ` FOR UPDATE`

func (s *Store) GetPet(ctx context.Context, deviceID string) (*PetState, error) {
	return scanPet(s.DB.QueryRowContext(ctx, petSelectSQL, deviceID))
}

// CreatePet inserts the default pet state for a device (spec.md §4.7:
// happiness=50, hunger=50, health=100, food=5, energy=5, level=0).
func (s *Store) CreatePet(ctx context.Context, deviceID, name string) (*PetState, error) {
	id := NewID()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pets (id, device_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id) DO NOTHING`, id, deviceID, name)
	if err != nil {
		return nil, err
	}
	return s.GetPet(ctx, deviceID)
}

func (s *Store) SetChainPetID(ctx context.Context, deviceID, chainPetID string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE pets SET chain_pet_id = $1 WHERE device_id = $2`, chainPetID, deviceID)
	return err
}

// UpdatePet persists an already-computed, already-clamped pet state.
// Callers (internal/petstate) own the rule evaluation; the store only
// persists the result atomically.
func (s *Store) UpdatePet(ctx context.Context, p PetState) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE pets SET
			name = $1, level = $2, experience = $3, total_steps = $4,
			happiness = $5, hunger = $6, health = $7, food = $8, energy = $9,
			last_fed_at = $10, last_played_at = $11, cosmetic = $12
		WHERE device_id = $13`,
		p.Name, p.Level, p.Experience, p.TotalSteps,
		p.Happiness, p.Hunger, p.Health, p.Food, p.Energy,
		p.LastFedAt, p.LastPlayedAt, p.Cosmetic, p.DeviceID)
	return err
}

// AddResources adds earned food/energy to a pet's resource counters.
func (s *Store) AddResources(ctx context.Context, deviceID string, food, energy int) (*PetState, error) {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE pets SET food = food + $1, energy = energy + $2 WHERE device_id = $3`,
		food, energy, deviceID)
	if err != nil {
		return nil, err
	}
	return s.GetPet(ctx, deviceID)
}

var (
	ErrInsufficientFood   = errors.New("insufficient food")
	ErrInsufficientEnergy = errors.New("insufficient energy")
)

// ConsumeAndApplyFeed applies the feedPet rule (spec.md §4.7)
// atomically: requires food >= 1, decrements food, raises
// hunger/happiness/experience, re-evaluates level, and stamps
// last_fed_at — all under one row lock so a concurrent play/claim on
// the same device can't observe a half-applied feed.
func (s *Store) ConsumeAndApplyFeed(ctx context.Context, deviceID string, now time.Time) (*PetState, error) {
	return s.withLockedPet(ctx, deviceID, func(p *PetState) error {
		if p.Food < 1 {
			return ErrInsufficientFood
		}
		p.Food--
		p.Hunger = clampPercent(p.Hunger + 25)
		p.Happiness = clampPercent(p.Happiness + 5)
		p.Experience += 10
		p.Level = LevelForExperience(p.Experience)
		p.LastFedAt = now
		return nil
	})
}

// ConsumeAndApplyPlay applies the playWithPet rule (spec.md §4.7)
// atomically: requires energy >= 1.
func (s *Store) ConsumeAndApplyPlay(ctx context.Context, deviceID string, now time.Time) (*PetState, error) {
	return s.withLockedPet(ctx, deviceID, func(p *PetState) error {
		if p.Energy < 1 {
			return ErrInsufficientEnergy
		}
		p.Energy--
		p.Happiness = clampPercent(p.Happiness + 15)
		p.Health = clampPercent(p.Health + 3)
		p.Experience += 5
		p.LastPlayedAt = now
		return nil
	})
}

// withLockedPet reads a pet row FOR UPDATE, applies mutate, and writes
// it back in the same transaction — the single-commit shape spec.md
// §4.3 requires for state transitions.
func (s *Store) withLockedPet(ctx context.Context, deviceID string, mutate func(*PetState) error) (*PetState, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, petSelectForUpdateSQL, deviceID)
	p, err := scanPet(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(p); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE pets SET
			level = $1, experience = $2, happiness = $3, hunger = $4, health = $5,
			food = $6, energy = $7, last_fed_at = $8, last_played_at = $9
		WHERE device_id = $10`,
		p.Level, p.Experience, p.Happiness, p.Hunger, p.Health,
		p.Food, p.Energy, p.LastFedAt, p.LastPlayedAt, deviceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPet(row *sql.Row) (*PetState, error) {
	var p PetState
	if err := row.Scan(&p.ID, &p.DeviceID, &p.Name, &p.Level, &p.Experience, &p.TotalSteps,
		&p.Happiness, &p.Hunger, &p.Health, &p.Food, &p.Energy,
		&p.CreatedAt, &p.LastFedAt, &p.LastPlayedAt, &p.Cosmetic, &p.ChainPetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
