// Package correlation tracks requests awaiting a response, keyed by
// correlation id.
package correlation

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/edgebus/internal/protocol"
	"github.com/google/uuid"
)

var ErrDuplicateID = errors.New("correlation: id already pending")

// Pending is one request awaiting its response.
type Pending struct {
	ID       uuid.UUID
	Request  protocol.MultiplyRequest
	Expected int64
	QueuedAt time.Time
}

// NewPending builds a pending entry whose expected result is the request's
// product.
func NewPending(id uuid.UUID, req protocol.MultiplyRequest) Pending {
	return Pending{
		ID:       id,
		Request:  req,
		Expected: req.Product(),
		QueuedAt: time.Now(),
	}
}

// Age is how long the entry has been pending as of now.
func (p Pending) Age(now time.Time) time.Duration {
	return now.Sub(p.QueuedAt)
}

// Store is the pending-request table. Reads share the lock; writes are
// exclusive.
type Store struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Pending
}

func NewStore() *Store {
	return &Store{
		items: make(map[uuid.UUID]Pending),
	}
}

// Insert adds p. An id that is already pending is never overwritten.
func (s *Store) Insert(p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	s.items[p.ID] = p
	return nil
}

// RemoveAndTake deletes id and returns what was stored for it.
func (s *Store) RemoveAndTake(id uuid.UUID) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return Pending{}, false
	}
	delete(s.items, id)
	return p, true
}

func (s *Store) Get(id uuid.UUID) (Pending, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	return p, ok
}

func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot copies every pending entry, ordered by id.
func (s *Store) Snapshot() []Pending {
	s.mu.RLock()
	out := make([]Pending, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}
