package store

import (
	"context"
	"sync"

	"github.com/amerhub/amerhub/internal/hub"
)

// MemoryMessageStore is an in-memory hub.MessageStore for tests and
// ephemeral deployments.
type MemoryMessageStore struct {
	mu     sync.Mutex
	byRoom map[string][]hub.StoredMessage
}

// NewMemoryMessageStore creates an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{byRoom: make(map[string][]hub.StoredMessage)}
}

// SaveMessage appends a message to its room's log.
func (s *MemoryMessageStore) SaveMessage(_ context.Context, msg hub.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRoom[msg.RoomID] = append(s.byRoom[msg.RoomID], msg)
	return nil
}

// History returns up to limit messages for a room, oldest first.
func (s *MemoryMessageStore) History(_ context.Context, roomID string, limit int) ([]hub.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byRoom[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]hub.StoredMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MemoryDirectory is an in-memory hub.ApplicationDirectory for tests.
type MemoryDirectory struct {
	mu    sync.Mutex
	rooms map[string][]string // identity → room ids
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{rooms: make(map[string][]string)}
}

// Grant entitles an identity to a room.
func (d *MemoryDirectory) Grant(identity string, roomIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[identity] = append(d.rooms[identity], roomIDs...)
}

// RoomsFor returns the rooms granted to an identity.
func (d *MemoryDirectory) RoomsFor(_ context.Context, identity, _ string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.rooms[identity]))
	copy(out, d.rooms[identity])
	return out, nil
}
