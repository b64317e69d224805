// Package store is the durable, single-writer-per-table persistence
// layer fronting the devices, submissions, and pets tables described
// in spec.md §3 and §4.3.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate")
	ErrDeviceKeyInUse   = errors.New("public key already bound to a different device")
	ErrDeviceNotRegistered = errors.New("device not registered")
)

// Store wraps the Postgres connection. All writes are transactional;
// readers observe committed state only.
type Store struct {
	DB *sql.DB
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// EnsureSchema creates the devices/submissions/pets tables and their
// indexes if they do not already exist. The teacher repo ships no
// migration tool (no golang-migrate/goose dependency anywhere in the
// retrieval pack's go.mod files), so this follows its own idiom of an
// idempotent bootstrap call made once at process start — the same
// shape as its EnsureDefaultRooms/EnsureDefaultProviderRates helpers.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS devices (
	id                 TEXT PRIMARY KEY,
	public_key         BYTEA NOT NULL UNIQUE,
	registered_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	total_steps        BIGINT NOT NULL DEFAULT 0,
	total_submissions  BIGINT NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'active',
	chain_device_id    TEXT
);

CREATE TABLE IF NOT EXISTS submissions (
	id                BIGSERIAL PRIMARY KEY,
	device_id         TEXT NOT NULL REFERENCES devices(id),
	step_count        INTEGER NOT NULL,
	timestamp_ms      BIGINT NOT NULL,
	firmware_version  INTEGER NOT NULL,
	battery_percent   INTEGER NOT NULL,
	raw_acc_samples   JSONB NOT NULL,
	signature         BYTEA NOT NULL,
	verified          BOOLEAN NOT NULL DEFAULT false,
	received_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	submitted         BOOLEAN NOT NULL DEFAULT false,
	chain_tx_id       TEXT,
	UNIQUE (device_id, timestamp_ms)
);

CREATE INDEX IF NOT EXISTS idx_submissions_pending ON submissions (submitted, verified);
CREATE INDEX IF NOT EXISTS idx_submissions_device ON submissions (device_id);

CREATE TABLE IF NOT EXISTS pets (
	id             TEXT PRIMARY KEY,
	device_id      TEXT NOT NULL UNIQUE REFERENCES devices(id),
	name           TEXT NOT NULL,
	level          INTEGER NOT NULL DEFAULT 0,
	experience     INTEGER NOT NULL DEFAULT 0,
	total_steps    BIGINT NOT NULL DEFAULT 0,
	happiness      INTEGER NOT NULL DEFAULT 50,
	hunger         INTEGER NOT NULL DEFAULT 50,
	health         INTEGER NOT NULL DEFAULT 100,
	food           INTEGER NOT NULL DEFAULT 5,
	energy         INTEGER NOT NULL DEFAULT 5,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_fed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_played_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	cosmetic       TEXT,
	chain_pet_id   TEXT
);
`
