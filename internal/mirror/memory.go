package mirror

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used as the offline fallback when no
// Redis endpoint is configured, and as the test double. It provides the
// same watch semantics as the redis implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	tabs     map[string]map[string][]byte
	watchers map[string][]chan map[string][]byte
}

// NewMemoryStore returns an empty in-memory mirror store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tabs:     make(map[string]map[string][]byte),
		watchers: make(map[string][]chan map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, userID, tabID string, snapshot []byte) error {
	s.mu.Lock()
	user := s.tabs[userID]
	if user == nil {
		user = make(map[string][]byte)
		s.tabs[userID] = user
	}
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	user[tabID] = cp
	s.notifyLocked(userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, tabID string) error {
	s.mu.Lock()
	delete(s.tabs[userID], tabID)
	s.notifyLocked(userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(userID), nil
}

func (s *MemoryStore) Watch(ctx context.Context, userID string) (<-chan map[string][]byte, error) {
	ch := make(chan map[string][]byte, 1)
	s.mu.Lock()
	s.watchers[userID] = append(s.watchers[userID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		ws := s.watchers[userID]
		for i, w := range ws {
			if w == ch {
				s.watchers[userID] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// notifyLocked pushes current state to watchers. Callers hold s.mu.
func (s *MemoryStore) notifyLocked(userID string) {
	for _, ch := range s.watchers[userID] {
		select {
		case ch <- s.copyLocked(userID):
		default:
		}
	}
}

func (s *MemoryStore) copyLocked(userID string) map[string][]byte {
	out := make(map[string][]byte, len(s.tabs[userID]))
	for id, v := range s.tabs[userID] {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[id] = cp
	}
	return out
}
