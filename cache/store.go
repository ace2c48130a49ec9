// Package cache persists key estimates in SQLite so unchanged tracks are not
// re-analyzed.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/RyanBlaney/sonido-clave/fingerprint"
	"github.com/RyanBlaney/sonido-clave/keyfinder"
)

// ErrNotFound is returned when no estimate is stored for a fingerprint and
// config digest.
var ErrNotFound = errors.New("estimate not cached")

// Entry is one stored estimate.
type Entry struct {
	ID           string
	Fingerprint  fingerprint.Fingerprint
	ConfigDigest string
	Source       string
	Estimate     *keyfinder.KeyEstimate
	CreatedAt    time.Time
}

// Store is a SQLite-backed estimate cache.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates the schema.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS estimates (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		config_digest TEXT NOT NULL,
		source TEXT,
		dominant_key TEXT,
		camelot_code TEXT,
		estimate TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (fingerprint, config_digest)
	);

	CREATE INDEX IF NOT EXISTS idx_estimates_camelot ON estimates (camelot_code);
	`)
	return err
}

// Get returns the estimate stored for fp under the given config digest.
func (s *Store) Get(ctx context.Context, fp fingerprint.Fingerprint, digest string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, estimate, created_at
		FROM estimates
		WHERE fingerprint = ? AND config_digest = ?
	`, string(fp), digest)

	entry := Entry{Fingerprint: fp, ConfigDigest: digest}
	var source sql.NullString
	var payload string
	if err := row.Scan(&entry.ID, &source, &payload, &entry.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load estimate: %w", err)
	}
	entry.Source = source.String

	var est keyfinder.KeyEstimate
	if err := json.Unmarshal([]byte(payload), &est); err != nil {
		return nil, fmt.Errorf("failed to decode cached estimate %s: %w", entry.ID, err)
	}
	entry.Estimate = &est
	return &entry, nil
}

// Put stores est, replacing any previous estimate for the same fingerprint
// and digest. It returns the row id.
func (s *Store) Put(ctx context.Context, fp fingerprint.Fingerprint, digest, source string, est *keyfinder.KeyEstimate) (string, error) {
	if est == nil {
		return "", fmt.Errorf("nil estimate")
	}
	payload, err := json.Marshal(est)
	if err != nil {
		return "", fmt.Errorf("failed to encode estimate: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO estimates (id, fingerprint, config_digest, source, dominant_key, camelot_code, estimate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint, config_digest) DO UPDATE SET
			id = excluded.id,
			source = excluded.source,
			dominant_key = excluded.dominant_key,
			camelot_code = excluded.camelot_code,
			estimate = excluded.estimate,
			created_at = CURRENT_TIMESTAMP
	`, id, string(fp), digest, source, est.DominantKey.String(), est.CamelotCode, string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to save estimate: %w", err)
	}
	return id, nil
}

// FindByCamelot lists stored sources whose dominant key has the given
// Camelot code, most recent first.
func (s *Store) FindByCamelot(ctx context.Context, code string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT IFNULL(source, '')
		FROM estimates
		WHERE camelot_code = ?
		ORDER BY created_at DESC, source ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate estimates: %w", err)
	}
	return sources, nil
}

// Count returns the number of stored estimates.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM estimates").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count estimates: %w", err)
	}
	return n, nil
}
