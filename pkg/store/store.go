// Package store keeps assembled artifacts in a SQLite database, keyed by
// the SHA-256 of their canonical wire encoding.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/wire"
)

var log = commonlog.GetLogger("stackasm.store")

var (
	// ErrNotFound indicates no artifact matches the digest or name.
	ErrNotFound = errors.New("artifact not found")
	// ErrCorrupt indicates stored bytes no longer match their digest.
	ErrCorrupt = errors.New("stored artifact does not match its digest")
	// ErrAmbiguous indicates a digest prefix matches several artifacts.
	ErrAmbiguous = errors.New("digest prefix is ambiguous")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS artifacts (
		digest     TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		width      TEXT NOT NULL,
		size       INTEGER NOT NULL,
		data       BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS artifacts_name ON artifacts (name, created_at)`,
}

// Entry describes a stored artifact without decoding it.
type Entry struct {
	Digest  string
	Name    string
	Width   string
	Size    int
	Created time.Time
}

// Store is an artifact database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path, creating parent
// directories as needed. ":memory:" opens a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	log.Debugf("opened artifact store %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an artifact and returns its digest. Storing the same
// artifact again is a no-op that returns the same digest.
func (s *Store) Put(ctx context.Context, a *asm.Artifact) (string, error) {
	data, digest, err := wire.Seal(a)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO artifacts (digest, name, width, size, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		digest, a.Name, a.Width.String(), len(data), data, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("saving artifact %s: %w", a.Name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debugf("stored %s as %s", a.Name, digest)
	}
	return digest, nil
}

// Get loads the artifact with the given digest. A unique prefix of at
// least four hex digits is accepted.
func (s *Store) Get(ctx context.Context, digest string) (*asm.Artifact, error) {
	full, err := s.Resolve(ctx, digest)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, "SELECT data FROM artifacts WHERE digest = ?", full).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	return decode(full, data)
}

// Latest loads the most recently stored artifact with the given name.
func (s *Store) Latest(ctx context.Context, name string) (*asm.Artifact, string, error) {
	var (
		digest string
		data   []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT digest, data FROM artifacts WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", name,
	).Scan(&digest, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, "", fmt.Errorf("querying artifact: %w", err)
	}
	a, err := decode(digest, data)
	return a, digest, err
}

// Resolve expands a digest prefix to a full digest.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToLower(prefix)
	if len(prefix) < 4 || strings.Trim(prefix, "0123456789abcdef") != "" {
		return "", fmt.Errorf("%w: %q is not a digest", ErrNotFound, prefix)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT digest FROM artifacts WHERE digest >= ? AND digest < ? ORDER BY digest LIMIT 2",
		prefix, prefix+"g")
	if err != nil {
		return "", fmt.Errorf("querying digests: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return "", fmt.Errorf("scanning digest: %w", err)
		}
		found = append(found, d)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("querying digests: %w", err)
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
}

// List returns all entries, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT digest, name, width, size, created_at FROM artifacts ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.Digest, &e.Name, &e.Width, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		e.Created = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes an artifact.
func (s *Store) Delete(ctx context.Context, digest string) error {
	full, err := s.Resolve(ctx, digest)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE digest = ?", full); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

func decode(digest string, data []byte) (*asm.Artifact, error) {
	if wire.SumHex(data) != digest {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, digest)
	}
	return wire.Unmarshal(data)
}
