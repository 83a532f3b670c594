package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/pkg/logger"
)

// MemoryStore keeps transcripts in process memory. Each session has its own
// mutex; the outer map lock is held only for lookup, insert, and removal.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession

	systemPrompt string
	expiry       time.Duration
	now          func() time.Time
}

type memorySession struct {
	mu         sync.Mutex
	removed    bool
	transcript Transcript
}

func NewMemoryStore(systemPrompt string, expiry time.Duration) *MemoryStore {
	if expiry == 0 {
		expiry = time.Hour
	}
	return &MemoryStore{
		sessions:     make(map[string]*memorySession),
		systemPrompt: systemPrompt,
		expiry:       expiry,
		now:          time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (*Transcript, error) {
	entry := s.lockEntry(sessionID)
	entry.transcript.LastAccessed = s.now()
	snap := entry.transcript.snapshot()
	entry.mu.Unlock()

	return &snap, nil
}

func (s *MemoryStore) AppendUnique(_ context.Context, sessionID, role, content string) (bool, error) {
	trimmed := strings.TrimSpace(content)

	entry := s.lockEntry(sessionID)
	defer entry.mu.Unlock()

	entry.transcript.LastAccessed = s.now()

	if entry.transcript.containsMessage(role, trimmed) {
		metrics.DuplicateTurnsSuppressed.Inc()
		logger.Debug("Duplicate turn suppressed",
			zap.String("session_id", sessionID),
			zap.String("role", role),
		)
		return false, nil
	}

	entry.transcript.Messages = append(entry.transcript.Messages, Message{Role: role, Content: trimmed})
	return true, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	entry, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if existed {
		entry.mu.Lock()
		entry.removed = true
		entry.mu.Unlock()
		metrics.SessionsActive.Dec()
	}
	return existed, nil
}

// SweepExpired removes sessions idle past the expiry window. Removed
// entries are marked so that a writer holding a stale pointer re-resolves
// the session instead of mutating the orphaned transcript.
func (s *MemoryStore) SweepExpired(_ context.Context) (int, error) {
	cutoff := s.now().Add(-s.expiry)
	removed := 0

	s.mu.Lock()
	for id, entry := range s.sessions {
		entry.mu.Lock()
		if entry.transcript.LastAccessed.Before(cutoff) {
			entry.removed = true
			delete(s.sessions, id)
			removed++
		}
		entry.mu.Unlock()
	}
	s.mu.Unlock()

	if removed > 0 {
		metrics.SessionsActive.Sub(float64(removed))
		metrics.SessionsSwept.Add(float64(removed))
		logger.Info("Expired sessions swept", zap.Int("removed", removed))
	}

	return removed, nil
}

// Persist is a no-op: the in-memory store has no durable backing.
func (s *MemoryStore) Persist(context.Context, string) error {
	return nil
}

func (s *MemoryStore) entry(sessionID string) *memorySession {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[sessionID]; ok {
		return entry
	}

	entry = &memorySession{
		transcript: Transcript{
			SessionID:    sessionID,
			Messages:     []Message{{Role: RoleSystem, Content: s.systemPrompt}},
			LastAccessed: s.now(),
		},
	}
	s.sessions[sessionID] = entry
	metrics.SessionsActive.Inc()

	return entry
}

// lockEntry returns the session entry with its lock held. An entry marked
// removed by Clear or the sweeper between lookup and lock is stale, so the
// lookup is retried; writes never land on an orphaned transcript.
func (s *MemoryStore) lockEntry(sessionID string) *memorySession {
	for {
		entry := s.entry(sessionID)
		entry.mu.Lock()
		if !entry.removed {
			return entry
		}
		entry.mu.Unlock()
	}
}
