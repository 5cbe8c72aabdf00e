package chat

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps history in process memory. It is the default store and
// loses everything on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string][]Message
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string][]Message)}
}

func (s *MemoryStore) Append(_ context.Context, m *Message) error {
	if err := prepare(m, time.Now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	stored := *m
	stored.Images = slices.Clone(m.Images)
	room := s.rooms[m.ActivityID]
	// Keep each room sorted by timestamp; equal timestamps keep append order.
	i := len(room)
	for i > 0 && room[i-1].Timestamp.After(stored.Timestamp) {
		i--
	}
	s.rooms[m.ActivityID] = slices.Insert(room, i, stored)
	return nil
}

func (s *MemoryStore) List(_ context.Context, activityID string, limit int) ([]Message, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	room := s.rooms[activityID]
	out := make([]Message, 0, min(limit, len(room)))
	for i := len(room) - 1; i >= 0 && len(out) < limit; i-- {
		m := room[i]
		m.Images = slices.Clone(m.Images)
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rooms = nil
	return nil
}
