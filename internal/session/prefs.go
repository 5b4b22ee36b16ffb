package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Preference keys.
const (
	DisplayKeyPrefix = "quizlens-display-"
	AllHiddenKey     = "quizlens-all-hidden"
)

// DisplayKey is the preference key for one question's visibility.
func DisplayKey(questionID string) string { return DisplayKeyPrefix + questionID }

// PreferenceStore keeps session-scoped display preferences.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// MemoryPreferences is an in-process PreferenceStore.
type MemoryPreferences struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryPreferences creates an empty MemoryPreferences.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{m: map[string]string{}}
}

func (p *MemoryPreferences) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *MemoryPreferences) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
	return nil
}

func (p *MemoryPreferences) DeletePrefix(_ context.Context, prefix string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.m {
		if strings.HasPrefix(k, prefix) {
			delete(p.m, k)
		}
	}
	return nil
}

// RedisPreferences stores preferences in Redis under a per-session
// namespace. Keys expire after the session TTL.
type RedisPreferences struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisPreferences creates a RedisPreferences for one session.
func NewRedisPreferences(client *redis.Client, sessionID string, ttl time.Duration) *RedisPreferences {
	return &RedisPreferences{
		client:    client,
		namespace: "quizlens:session:" + sessionID + ":",
		ttl:       ttl,
	}
}

func (p *RedisPreferences) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := p.client.Get(ctx, p.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "session: get preference %s", key)
	}
	return v, true, nil
}

func (p *RedisPreferences) Set(ctx context.Context, key, value string) error {
	if err := p.client.Set(ctx, p.namespace+key, value, p.ttl).Err(); err != nil {
		return eris.Wrapf(err, "session: set preference %s", key)
	}
	return nil
}

func (p *RedisPreferences) DeletePrefix(ctx context.Context, prefix string) error {
	iter := p.client.Scan(ctx, 0, p.namespace+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "session: scan preferences")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrap(err, "session: delete preferences")
	}
	return nil
}
