// Package storage persists the small amount of client state the console
// keeps between runs: the bearer token and the locale preference.
package storage

import (
	"context"
	"errors"
	"sync"

	"algoshield.org/console/internal/config"
)

const (
	KeyToken  = "auth_token"
	KeyLocale = "locale"
)

// ErrEmptyKey is returned for operations on "".
var ErrEmptyKey = errors.New("storage: empty key")

// Store is a string key/value store. Get returns "" for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Open picks the Redis backend when a URL is configured, else the state file.
func Open(ctx context.Context, cfg config.Storage) (Store, func() error, error) {
	if cfg.RedisURL != "" {
		r, err := OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return NewFile(cfg.Path), func() error { return nil }, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// TokenStore serializes access to the persisted bearer token.
type TokenStore struct {
	mu    sync.Mutex
	store Store
}

func NewTokenStore(s Store) *TokenStore {
	return &TokenStore{store: s}
}

// Token implements apiclient.TokenSource.
func (t *TokenStore) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Get(ctx, KeyToken)
}

func (t *TokenStore) SetToken(ctx context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token == "" {
		return t.store.Remove(ctx, KeyToken)
	}
	return t.store.Set(ctx, KeyToken, token)
}

func (t *TokenStore) ClearToken(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Remove(ctx, KeyToken)
}
