// Package store keeps candidate profiles in SQLite. The mock backend serves profile reads and
// writes from it, and the CLI can use it as a local save target.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

// ErrNotFound is returned by GetProfile for unknown ids.
var ErrNotFound = errors.New("store: profile not found")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	provider_uid TEXT,
	linkedin_url TEXT,
	email TEXT,
	payload TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS profiles_provider_uid ON profiles(provider_uid);
`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveProfile inserts or replaces rec, keyed by its id.
func (s *Store) SaveProfile(ctx context.Context, rec candidate.Record) error {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return errors.New("store: record id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO profiles (id, provider_uid, linkedin_url, email, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		provider_uid=excluded.provider_uid,
		linkedin_url=excluded.linkedin_url,
		email=excluded.email,
		payload=excluded.payload,
		updated_at=excluded.updated_at
	`, id, rec.ProviderUID, rec.LinkedInURL, rec.Email, string(payload), s.now().UTC())
	if err != nil {
		return fmt.Errorf("save profile %s: %w", id, err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (candidate.Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM profiles WHERE id = ?`, strings.TrimSpace(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return candidate.Record{}, ErrNotFound
	}
	if err != nil {
		return candidate.Record{}, fmt.Errorf("get profile %s: %w", id, err)
	}
	return decode(payload)
}

// ListProfiles returns every stored profile ordered by id.
func (s *Store) ListProfiles(ctx context.Context) ([]candidate.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []candidate.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

func decode(payload string) (candidate.Record, error) {
	var rec candidate.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return candidate.Record{}, fmt.Errorf("decode stored profile: %w", err)
	}
	return rec, nil
}
