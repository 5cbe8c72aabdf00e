package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
)

// SQLiteStore persists history in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return nil, chaterrors.NewConfigError(chaterrors.ErrCodeConfigInvalid, "sqlite dsn has no path")
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "create store directory")
	}

	// busy_timeout is per connection, so it goes in the DSN for the whole pool.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "open sqlite store")
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "configure sqlite store")
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "migrate sqlite store")
	}
	return &SQLiteStore{db: db}, nil
}

// created_at holds Unix nanoseconds so ordering never depends on how the
// driver formats times.
func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS messages (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  activity_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  sender_name TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL,
  images TEXT NOT NULL DEFAULT '[]',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_activity_created ON messages(activity_id, created_at DESC, seq DESC);
`)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, m *Message) error {
	if err := prepare(m, time.Now()); err != nil {
		return err
	}
	images := m.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return chaterrors.WrapInternal(err, chaterrors.ErrCodeInternal, "encode images")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, activity_id, sender_id, sender_name, body, images, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ActivityID, m.SenderID, m.SenderName, m.Body, string(imagesJSON), m.Timestamp.UnixNano())
	if err != nil {
		return chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "insert message")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, activityID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, activity_id, sender_id, sender_name, body, images, created_at
FROM messages WHERE activity_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		activityID, normalizeLimit(limit))
	if err != nil {
		return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "query messages")
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var (
			m          Message
			imagesJSON string
			createdAt  int64
		)
		if err := rows.Scan(&m.ID, &m.ActivityID, &m.SenderID, &m.SenderName, &m.Body, &imagesJSON, &createdAt); err != nil {
			return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "scan message")
		}
		if err := json.Unmarshal([]byte(imagesJSON), &m.Images); err != nil {
			return nil, chaterrors.WrapInternal(err, chaterrors.ErrCodeInternal, "decode message images").
				WithContext("message_id", m.ID).
				WithComponent("chat")
		}
		m.Timestamp = time.Unix(0, createdAt).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "read messages")
	}
	return out, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return chaterrors.WrapIO(err, chaterrors.ErrCodeStoreUnavailable, "ping sqlite store")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
