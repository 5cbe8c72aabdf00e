package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	mem, err := Open(ctx, "memory://")
	require.NoError(t, err)

	lite, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "chat", "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = mem.Close()
		_ = lite.Close()
	})
	return map[string]Store{"memory": mem, "sqlite": lite}
}

func TestOpen_Schemes(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "postgres://db/chat")
	require.Error(t, err)
	assert.True(t, chaterrors.IsType(err, chaterrors.ErrorTypeConfig))

	_, err = Open(ctx, "sqlite://")
	assert.True(t, chaterrors.IsType(err, chaterrors.ErrorTypeConfig))
}

func TestStore_AppendAssignsFields(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			m := &Message{ActivityID: "hike-1", Body: "hello"}
			require.NoError(t, store.Append(context.Background(), m))

			assert.NotEmpty(t, m.ID)
			assert.False(t, m.Timestamp.IsZero())
			assert.Equal(t, time.UTC, m.Timestamp.Location())
			assert.Equal(t, Anonymous, m.SenderID)
		})
	}
}

func TestStore_AppendRequiresActivity(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Append(context.Background(), &Message{Body: "orphan"})
			require.Error(t, err)
			assert.Equal(t, chaterrors.ErrCodeInvalidActivity, chaterrors.Code(err))

			err = store.Append(context.Background(), nil)
			assert.Error(t, err)
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// Out of order on purpose; listing sorts by timestamp.
			for _, offset := range []int{2, 0, 3, 1} {
				require.NoError(t, store.Append(ctx, &Message{
					ActivityID: "hike-1",
					SenderID:   "u1",
					SenderName: "Ann",
					Body:       fmt.Sprintf("m%d", offset),
					Images:     []string{"https://example.com/a.png"},
					Timestamp:  base.Add(time.Duration(offset) * time.Minute),
				}))
			}
			require.NoError(t, store.Append(ctx, &Message{ActivityID: "other", Body: "elsewhere", Timestamp: base}))

			got, err := store.List(ctx, "hike-1", 3)
			require.NoError(t, err)

			want := []Message{
				{ActivityID: "hike-1", SenderID: "u1", SenderName: "Ann", Body: "m3", Images: []string{"https://example.com/a.png"}, Timestamp: base.Add(3 * time.Minute)},
				{ActivityID: "hike-1", SenderID: "u1", SenderName: "Ann", Body: "m2", Images: []string{"https://example.com/a.png"}, Timestamp: base.Add(2 * time.Minute)},
				{ActivityID: "hike-1", SenderID: "u1", SenderName: "Ann", Body: "m1", Images: []string{"https://example.com/a.png"}, Timestamp: base.Add(time.Minute)},
			}
			if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Message{}, "ID")); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ListEqualTimestampsKeepsInsertOrder(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, body := range []string{"first", "second", "third"} {
				require.NoError(t, store.Append(ctx, &Message{ActivityID: "a", Body: body, Timestamp: at}))
			}

			got, err := store.List(ctx, "a", 0)
			require.NoError(t, err)
			bodies := make([]string, 0, len(got))
			for _, m := range got {
				bodies = append(bodies, m.Body)
			}
			assert.Equal(t, []string{"third", "second", "first"}, bodies)
		})
	}
}

func TestStore_ListUnknownActivity(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.List(context.Background(), "nobody-here", 10)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_DefaultLimit(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < DefaultHistoryLimit+5; i++ {
				require.NoError(t, store.Append(ctx, &Message{ActivityID: "busy", Body: "x"}))
			}
			got, err := store.List(ctx, "busy", -1)
			require.NoError(t, err)
			assert.Len(t, got, DefaultHistoryLimit)
		})
	}
}

func TestStore_ListReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	m := &Message{ActivityID: "a", Body: "x", Images: []string{"https://example.com/1.png"}}
	require.NoError(t, store.Append(ctx, m))
	m.Images[0] = "mutated"

	got, err := store.List(ctx, "a", 1)
	require.NoError(t, err)
	got[0].Images[0] = "mutated again"

	again, err := store.List(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/1.png", again[0].Images[0])
}

func TestStore_SQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "history.db")

	first, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, first.Append(ctx, &Message{ActivityID: "a", Body: "kept"}))
	require.NoError(t, first.Close())

	second, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.List(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Body)
	assert.Empty(t, got[0].Images)
}

func TestSQLiteStore_ListCorruptImages(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	m := &Message{ActivityID: "a", Body: "hi", Images: []string{"https://example.com/1.png"}}
	require.NoError(t, store.Append(ctx, m))

	lite, ok := store.(*SQLiteStore)
	require.True(t, ok)
	_, err = lite.db.ExecContext(ctx, `UPDATE messages SET images = ? WHERE id = ?`, "{not json", m.ID)
	require.NoError(t, err)

	_, err = store.List(ctx, "a", 10)
	require.Error(t, err)
	assert.Equal(t, chaterrors.ErrCodeInternal, chaterrors.Code(err))
	assert.Equal(t, m.ID, chaterrors.GetErrorContext(err)["message_id"])
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.Error(t, store.Ping(ctx))
	assert.Error(t, store.Append(ctx, &Message{ActivityID: "a", Body: "x"}))
	_, err := store.List(ctx, "a", 1)
	assert.Error(t, err)
}

func TestStore_ConcurrentAppend(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 5; j++ {
						assert.NoError(t, store.Append(ctx, &Message{ActivityID: "race", Body: "x"}))
					}
				}()
			}
			wg.Wait()

			got, err := store.List(ctx, "race", 100)
			require.NoError(t, err)
			assert.Len(t, got, 40)
			require.NoError(t, store.Ping(ctx))
		})
	}
}
