package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/pkg/logger"
)

const redisKeyPrefix = "session:"

// RedisStore persists transcripts in Redis with a sliding TTL equal to the
// expiry window. Expiry itself is delegated to Redis key eviction.
type RedisStore struct {
	client *redis.Client

	systemPrompt string
	expiry       time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRedisStore(ctx context.Context, addr, password string, db int, systemPrompt string, expiry time.Duration) (*RedisStore, error) {
	if expiry == 0 {
		expiry = time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: ping %s: %v", ErrStoreUnavailable, addr, err)
	}

	logger.Info("Connected to Redis session store", zap.String("addr", addr))

	return &RedisStore{
		client:       client,
		systemPrompt: systemPrompt,
		expiry:       expiry,
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID string) (*Transcript, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	transcript, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	transcript.LastAccessed = time.Now()
	if err := s.save(ctx, transcript); err != nil {
		return nil, err
	}

	snap := transcript.snapshot()
	return &snap, nil
}

func (s *RedisStore) AppendUnique(ctx context.Context, sessionID, role, content string) (bool, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	transcript, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}

	trimmed := strings.TrimSpace(content)
	transcript.LastAccessed = time.Now()

	if transcript.containsMessage(role, trimmed) {
		metrics.DuplicateTurnsSuppressed.Inc()
		if err := s.save(ctx, transcript); err != nil {
			return false, err
		}
		return false, nil
	}

	transcript.Messages = append(transcript.Messages, Message{Role: role, Content: trimmed})
	if err := s.save(ctx, transcript); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := s.client.Del(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: del: %v", ErrStoreUnavailable, err)
	}

	// The per-session mutex is only needed while the key exists; dropping it
	// here keeps the map from growing with every session id ever seen.
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()

	return removed > 0, nil
}

// SweepExpired always reports zero: stale keys are evicted by Redis TTL, so
// there is nothing for the scheduler to reclaim here.
func (s *RedisStore) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

// Persist refreshes the TTL so an active session does not expire mid-turn.
func (s *RedisStore) Persist(ctx context.Context, sessionID string) error {
	if err := s.client.Expire(ctx, redisKeyPrefix+sessionID, s.expiry).Err(); err != nil {
		return fmt.Errorf("%w: expire: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*Transcript, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return &Transcript{
			SessionID:    sessionID,
			Messages:     []Message{{Role: RoleSystem, Content: s.systemPrompt}},
			LastAccessed: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrStoreUnavailable, err)
	}

	var transcript Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("%w: decode session %s: %v", ErrStoreUnavailable, sessionID, err)
	}
	return &transcript, nil
}

func (s *RedisStore) save(ctx context.Context, transcript *Transcript) error {
	raw, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("%w: encode session %s: %v", ErrStoreUnavailable, transcript.SessionID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+transcript.SessionID, raw, s.expiry).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}
