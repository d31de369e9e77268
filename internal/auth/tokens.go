// Package auth holds the capability token plumbing: the client reads its
// token from durable storage, the relay issues and verifies it.
package auth

import (
	"errors"
	"strings"
	"sync"
)

var ErrTokenNotFound = errors.New("token not found")

// LegacyTokenKeys lists the storage keys a token may have been saved under,
// most recent first.
var LegacyTokenKeys = []string{"access_token", "token", "auth_token", "jwt"}

type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type TokenSource interface {
	Token() (string, error)
}

// ChainSource returns the first non-empty token found under Keys.
type ChainSource struct {
	Store TokenStore
	Keys  []string
}

func NewChainSource(store TokenStore) ChainSource {
	return ChainSource{Store: store, Keys: LegacyTokenKeys}
}

func (c ChainSource) Token() (string, error) {
	for _, key := range c.Keys {
		value, err := c.Store.Get(key)
		if errors.Is(err, ErrTokenNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, nil
		}
	}
	return "", ErrTokenNotFound
}

// StaticSource always yields the same token.
type StaticSource string

func (s StaticSource) Token() (string, error) {
	if s == "" {
		return "", ErrTokenNotFound
	}
	return string(s), nil
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrTokenNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
