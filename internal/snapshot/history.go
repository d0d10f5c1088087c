package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// History actions
const (
	ActionSave   = "save"
	ActionDelete = "delete"
)

// HistoryEntry records one change to the snapshot store
type HistoryEntry struct {
	ID        string     `json:"id"`
	Action    string     `json:"action"`
	Kind      model.Kind `json:"kind"`
	Count     int        `json:"count"`
	Source    string     `json:"source,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (s *Store) recordHistory(ctx context.Context, tx *sql.Tx, action string, kind model.Kind, count int, source string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO history (id, action, kind, item_count, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, uuid.NewString(), action, string(kind), count, source, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// History returns the most recent entries first. limit <= 0 returns everything.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `SELECT id, action, kind, item_count, source, created_at FROM history ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var kind string
		var source sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Action, &kind, &e.Count, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Kind = model.Kind(kind)
		e.Source = source.String
		e.CreatedAt = time.Unix(0, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
