// Package sqlite stores snapshot histories in a local SQLite database.
// Payloads are zstd-compressed JSON; the row sequence preserves append order.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
)

//go:embed schema.sql
var schema string

// Store is a SQLite-backed snapshot.Repository.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Append(ctx context.Context, id diagram.Identity, snap *snapshot.Snapshot) error {
	payload, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO snapshots (id, identity, created_at, total, fingerprint, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, id.String(), snap.CreatedAt.UnixNano(), snap.Total, snap.Fingerprint, payload)
	if err != nil {
		return snapshot.Unavailable("append", fmt.Errorf("inserting snapshot: %w", err))
	}
	return nil
}

func (s *Store) ReadRecent(ctx context.Context, id diagram.Identity, n int) ([]snapshot.Snapshot, error) {
	limit := n
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT payload FROM snapshots
		WHERE identity = ?
		ORDER BY seq DESC
		LIMIT ?`, id.String(), limit)
	if err != nil {
		return nil, snapshot.Unavailable("read_recent", fmt.Errorf("querying snapshots: %w", err))
	}
	defer rows.Close()

	var newestFirst []snapshot.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, snapshot.Unavailable("read_recent", fmt.Errorf("scanning snapshot: %w", err))
		}
		snap, err := snapshot.Decode(payload)
		if err != nil {
			return nil, snapshot.Unavailable("read_recent", err)
		}
		newestFirst = append(newestFirst, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, snapshot.Unavailable("read_recent", err)
	}

	out := make([]snapshot.Snapshot, len(newestFirst))
	for i, snap := range newestFirst {
		out[len(newestFirst)-1-i] = snap
	}
	return out, nil
}

// Count returns the number of snapshots stored for an identity.
func (s *Store) Count(ctx context.Context, id diagram.Identity) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE identity = ?`, id.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

var _ snapshot.Repository = (*Store)(nil)
