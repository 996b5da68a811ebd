package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Suitable for development and
// for deployments where losing history on restart is acceptable.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	seed     []Entry
	logger   *slog.Logger
}

type memorySession struct {
	entries   []Entry
	updatedAt time.Time
}

// NewMemoryStore creates an in-memory store. Every new session starts with a
// copy of seed.
func NewMemoryStore(seed []Entry, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		seed:     seed,
		logger:   logger.With("component", "session"),
	}
}

func (s *MemoryStore) History(ctx context.Context, userID string) ([]Entry, error) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		sess = s.create(userID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(sess.entries))
	copy(out, sess.entries)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, userID string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &memorySession{entries: append([]Entry(nil), s.seed...)}
		s.sessions[userID] = sess
		s.logger.Debug("session seeded", "user", userID)
	}
	sess.entries = prune(append(sess.entries, entries...), len(s.seed))
	sess.updatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]Info, 0, len(s.sessions))
	for userID, sess := range s.sessions {
		info := Info{
			UserID:    userID,
			Entries:   len(sess.entries),
			UpdatedAt: sess.updatedAt,
		}
		if n := len(sess.entries); n > 0 {
			info.LastText = sess.entries[n-1].Text
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *MemoryStore) Sweep(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for userID, sess := range s.sessions {
		if sess.updatedAt.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("idle sessions swept", "removed", removed)
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }

// create seeds a new session, double-checking under the write lock.
func (s *MemoryStore) create(userID string) *memorySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess := &memorySession{
		entries:   append([]Entry(nil), s.seed...),
		updatedAt: time.Now(),
	}
	s.sessions[userID] = sess
	s.logger.Debug("session seeded", "user", userID)
	return sess
}
