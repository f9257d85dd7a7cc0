package ws

import (
	"errors"
	"sync"
)

// ErrTooManyConnections is returned by Add when the hub is full.
var ErrTooManyConnections = errors.New("too many dashboard connections")

// Hub tracks open dashboard sessions. Sessions share nothing through the
// hub; it exists for connection limits, health reporting and shutdown.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxConns int
}

// NewHub returns a hub admitting at most maxConns sessions; zero means no
// limit.
func NewHub(maxConns int) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		maxConns: maxConns,
	}
}

func (h *Hub) Add(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxConns > 0 && len(h.sessions) >= h.maxConns {
		return ErrTooManyConnections
	}
	h.sessions[s.ID()] = s
	return nil
}

// Remove forgets s. It does not close it.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	if cur, ok := h.sessions[s.ID()]; ok && cur == s {
		delete(h.sessions, s.ID())
	}
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll closes every session concurrently and waits for all of them.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close(reason)
		}()
	}
	wg.Wait()
}
