package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"preventcoach/internal/journey"
	"preventcoach/internal/model"
)

// ErrSessionNotFound is returned by Load for a user that has never been
// saved. It is distinct from an existing session with an empty history.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists per-user conversation state. Saves for the same
// user are serialized; saves for different users are independent.
type SessionStore interface {
	Load(ctx context.Context, userID string) (*model.SessionState, error)
	Save(ctx context.Context, userID string, state *model.SessionState) error
}

// userLocks provides a per-key mutex so concurrent saves for the same user
// cannot interleave.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (u *userLocks) lockFor(userID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	return l
}

// RedisSessionStore persists sessions in Redis under "session:<user_id>".
// Sessions are durable: entries are written without expiration.
type RedisSessionStore struct {
	client       *redis.Client
	locks        *userLocks
	knownAgents  map[string]bool
	defaultAgent string
}

// NewRedisSessionStore connects to Redis and returns a session store.
// agentNames lists the registered agent names; the first one is substituted
// when a persisted active_agent value is missing or unrecognized.
func NewRedisSessionStore(ctx context.Context, redisURL string, agentNames []string) (*RedisSessionStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSessionStore{
		client:       client,
		locks:        newUserLocks(),
		knownAgents:  agentSet(agentNames),
		defaultAgent: firstAgent(agentNames),
	}, nil
}

func (r *RedisSessionStore) Load(ctx context.Context, userID string) (*model.SessionState, error) {
	key := sessionKey(userID)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state model.SessionState
	if err := sonic.UnmarshalString(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	normalizeState(&state, r.knownAgents, r.defaultAgent)
	return &state, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, userID string, state *model.SessionState) error {
	lock := r.locks.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	data, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// No TTL: sessions are durable and never expire.
	if err := r.client.Set(ctx, sessionKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

// Ping tests the Redis connection.
func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MemorySessionStore is an in-memory implementation for development and
// tests. It stores serialized snapshots so loads never alias saved state.
type MemorySessionStore struct {
	mu           sync.RWMutex
	sessions     map[string]string
	locks        *userLocks
	knownAgents  map[string]bool
	defaultAgent string
}

func NewMemorySessionStore(agentNames []string) *MemorySessionStore {
	return &MemorySessionStore{
		sessions:     make(map[string]string),
		locks:        newUserLocks(),
		knownAgents:  agentSet(agentNames),
		defaultAgent: firstAgent(agentNames),
	}
}

func (m *MemorySessionStore) Load(ctx context.Context, userID string) (*model.SessionState, error) {
	m.mu.RLock()
	data, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	var state model.SessionState
	if err := sonic.UnmarshalString(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	normalizeState(&state, m.knownAgents, m.defaultAgent)
	return &state, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, userID string, state *model.SessionState) error {
	lock := m.locks.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	data, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	m.mu.Lock()
	m.sessions[userID] = data
	m.mu.Unlock()
	return nil
}

func sessionKey(userID string) string {
	return "session:" + userID
}

// normalizeState repairs recoverable corruption in a loaded session: an
// unrecognized active agent falls back to the initial agent, and an
// unrecognized stage to the login default, instead of failing the load.
func normalizeState(state *model.SessionState, known map[string]bool, defaultAgent string) {
	if !known[state.ActiveAgent] {
		state.ActiveAgent = defaultAgent
	}
	if !journey.Valid(state.Stage) {
		state.Stage = journey.StageEducateMotivate
	}
	if state.ContextVariables == nil {
		state.ContextVariables = make(map[string]any)
	}
	if state.ConversationHistory == nil {
		state.ConversationHistory = []model.Message{}
	}
}

func agentSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func firstAgent(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
