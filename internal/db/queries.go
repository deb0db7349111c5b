package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	OutcomeUploaded    = "uploaded"
	OutcomeQuarantined = "quarantined"
)

type Queries struct {
	db *sql.DB
}

type HistoryEntry struct {
	ID        int64
	RunID     string
	Path      string
	Size      int64
	SHA1      string
	Attempts  int
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

const getAuthToken = `SELECT token FROM auth_token WHERE id = 1`

// GetAuthToken returns the stored OAuth token or "" if there is none.
func (q *Queries) GetAuthToken(ctx context.Context) (string, error) {
	var token string
	err := q.db.QueryRowContext(ctx, getAuthToken).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return token, err
}

const updateAuthToken = `INSERT INTO auth_token (id, token) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET token = excluded.token`

func (q *Queries) UpdateAuthToken(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, updateAuthToken, token)
	return err
}

const insertHistory = `INSERT INTO upload_history (run_id, path, size, sha1, attempts, outcome, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertHistory(ctx context.Context, e HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := q.db.ExecContext(
		ctx, insertHistory,
		e.RunID, e.Path, e.Size, e.SHA1, e.Attempts, e.Outcome, e.Detail, e.CreatedAt.UnixMilli(),
	)
	return err
}

const listHistory = `SELECT id, run_id, path, size, sha1, attempts, outcome, detail, created_at
FROM upload_history ORDER BY created_at DESC, id DESC LIMIT ?`

// ListHistory returns the newest entries first.
func (q *Queries) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx, listHistory, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			created int64
		)
		if err = rows.Scan(&e.ID, &e.RunID, &e.Path, &e.Size, &e.SHA1, &e.Attempts, &e.Outcome, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
