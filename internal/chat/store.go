package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
)

// DefaultHistoryLimit is used when List is called without a positive limit.
const DefaultHistoryLimit = 50

// Store persists chat history.
type Store interface {
	// Append stores m, assigning its ID and a UTC timestamp when unset.
	Append(ctx context.Context, m *Message) error
	// List returns up to limit messages of an activity, newest first.
	List(ctx context.Context, activityID string, limit int) ([]Message, error)
	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error
	Close() error
}

// Open returns a Store for dsn. An empty dsn or memory:// selects the
// in-memory store, sqlite://path a SQLite database at path.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory://":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return openSQLite(ctx, dsn)
	default:
		return nil, chaterrors.NewConfigError(chaterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported store dsn %q", dsn))
	}
}

// prepare fills the fields Append owns and checks the rest.
func prepare(m *Message, now time.Time) error {
	if m == nil {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidFrame, "nil message")
	}
	if m.ActivityID == "" {
		return chaterrors.ErrInvalidActivity(m.ActivityID)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.Timestamp = m.Timestamp.UTC()
	if m.SenderID == "" {
		m.SenderID = Anonymous
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

var errClosed = chaterrors.NewInternalError(chaterrors.ErrCodeStoreUnavailable, "store is closed", nil)
