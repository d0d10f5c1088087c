package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// ErrNoSnapshot is returned by Load when a kind was never saved
var ErrNoSnapshot = errors.New("no snapshot for collection")

// Store keeps the last fetched copy of each collection in SQLite
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Collection describes one saved collection
type Collection struct {
	Kind      model.Kind `json:"kind"`
	Count     int        `json:"count"`
	Source    string     `json:"source"`
	FetchedAt time.Time  `json:"fetchedAt"`
}

// NewStore opens (and migrates) the snapshot database at dbPath.
func NewStore(dbPath string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(sqliteDriver, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			kind TEXT PRIMARY KEY,
			item_count INTEGER NOT NULL,
			source TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			kind TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT,
			body TEXT NOT NULL,
			PRIMARY KEY (kind, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_kind_id ON items(kind, id)`,
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			kind TEXT NOT NULL,
			item_count INTEGER NOT NULL,
			source TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// Save replaces the stored collection for kind with items, which must
// marshal to a JSON array.
func (s *Store) Save(ctx context.Context, kind model.Kind, items any, source string) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to save %s: items are not a JSON array: %w", kind, err)
	}
	return s.SaveRaw(ctx, kind, raw, source)
}

// SaveRaw replaces the stored collection for kind inside a single transaction,
// so readers never see rows from two different fetches.
func (s *Store) SaveRaw(ctx context.Context, kind model.Kind, raw []json.RawMessage, source string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE kind = ?`, string(kind)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", kind, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (kind, position, id, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range raw {
		if _, err := stmt.ExecContext(ctx, string(kind), i, itemID(item), string(item)); err != nil {
			return fmt.Errorf("failed to insert %s item %d: %w", kind, i, err)
		}
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO collections (kind, item_count, source, fetched_at)
		VALUES (?, ?, ?, ?)`, string(kind), len(raw), source, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to record %s snapshot: %w", kind, err)
	}
	if err := s.recordHistory(ctx, tx, ActionSave, kind, len(raw), source, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s snapshot: %w", kind, err)
	}
	s.logger.Printf("Saved %d %s from %s", len(raw), kind, source)
	return nil
}

func itemID(raw json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// LoadRaw returns the stored items for kind in their saved order.
func (s *Store) LoadRaw(ctx context.Context, kind model.Kind) ([]json.RawMessage, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT item_count FROM collections WHERE kind = ?`, string(kind)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s snapshot: %w", kind, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM items WHERE kind = ? ORDER BY position`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s items: %w", kind, err)
	}
	defer rows.Close()

	out := make([]json.RawMessage, 0, count)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan %s item: %w", kind, err)
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

// Load decodes the stored collection for kind into into, a pointer to a slice.
func (s *Store) Load(ctx context.Context, kind model.Kind, into any) error {
	raw, err := s.LoadRaw(ctx, kind)
	if err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to assemble %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return nil
}

// Info lists saved collections ordered by kind
func (s *Store) Info(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, item_count, source, fetched_at FROM collections ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		var kind string
		var fetchedAt int64
		if err := rows.Scan(&kind, &c.Count, &c.Source, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c.Kind = model.Kind(kind)
		c.FetchedAt = time.UnixMilli(fetchedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete drops the stored collection for kind. Deleting a missing kind is not an error.
func (s *Store) Delete(ctx context.Context, kind model.Kind) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE kind = ?`, string(kind))
	if err != nil {
		return fmt.Errorf("failed to delete %s items: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE kind = ?`, string(kind)); err != nil {
		return fmt.Errorf("failed to delete %s snapshot: %w", kind, err)
	}
	if err := s.recordHistory(ctx, tx, ActionDelete, kind, int(n), "", time.Now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	s.logger.Printf("Deleted %s snapshot (%d items)", kind, n)
	return nil
}
