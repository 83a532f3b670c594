// Package session holds per-session conversation transcripts: lazily
// created, deduplicated on append, idle-expired, optionally persisted to a
// durable store.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable marks transport failures against the durable
// transcript store.
var ErrStoreUnavailable = errors.New("session store unavailable")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered message history for one session. The first
// message is always the single system prompt.
type Transcript struct {
	SessionID    string    `json:"session_id"`
	Messages     []Message `json:"messages"`
	LastAccessed time.Time `json:"last_accessed"`
}

func (t *Transcript) snapshot() Transcript {
	messages := make([]Message, len(t.Messages))
	copy(messages, t.Messages)
	return Transcript{
		SessionID:    t.SessionID,
		Messages:     messages,
		LastAccessed: t.LastAccessed,
	}
}

func (t *Transcript) containsMessage(role, content string) bool {
	for _, m := range t.Messages {
		if m.Role == role && m.Content == content {
			return true
		}
	}
	return false
}

// Store is the session-keyed transcript store. Operations on the same
// session id are serialized relative to each other; different sessions are
// independent.
type Store interface {
	// GetOrCreate returns a snapshot of the session's transcript,
	// refreshing its last-accessed time. A new session is seeded with
	// exactly one system message.
	GetOrCreate(ctx context.Context, sessionID string) (*Transcript, error)

	// AppendUnique appends a trimmed message unless an identical
	// (role, content) entry already exists anywhere in the history.
	// Returns whether the message was appended.
	AppendUnique(ctx context.Context, sessionID, role, content string) (bool, error)

	// Clear removes the session's transcript, reporting whether one
	// existed.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// SweepExpired removes every transcript idle for longer than the
	// expiry window, returning the number removed. Runs off the request
	// path.
	SweepExpired(ctx context.Context) (int, error)

	// Persist flushes the session's transcript to durable storage where
	// the implementation has one.
	Persist(ctx context.Context, sessionID string) error
}
