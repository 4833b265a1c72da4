package usecase

import (
	"sync"
	"time"

	"dictakey/internal/domain"
)

// StateStore holds the published dictation snapshot. Only the controller
// loop writes to it; readers take copies.
type StateStore struct {
	now func() time.Time

	mu          sync.RWMutex
	snapshot    domain.Snapshot
	subscribers map[int]chan domain.StateChange
	nextID      int
}

func NewStateStore() *StateStore {
	return &StateStore{
		now:         time.Now,
		snapshot:    domain.Snapshot{State: domain.StateIdle},
		subscribers: make(map[int]chan domain.StateChange),
	}
}

// Snapshot returns the current state.
func (s *StateStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Subscribe returns a channel of state changes and a cancel func that
// closes it. Changes are dropped for a subscriber whose buffer is full.
func (s *StateStore) Subscribe(buffer int) (<-chan domain.StateChange, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.StateChange, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}
}

// Close closes every subscriber channel.
func (s *StateStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

type change struct {
	reason domain.StateReason
	code   domain.ErrorCode
	detail string
}

func (s *StateStore) update(mutate func(*domain.Snapshot), c change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mutate != nil {
		mutate(&s.snapshot)
	}
	event := domain.StateChange{
		Snapshot:  s.snapshot,
		Reason:    c.reason,
		ErrorCode: c.code,
		Detail:    c.detail,
		At:        s.now(),
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
