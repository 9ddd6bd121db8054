// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package storage

import (
	"strings"
	"sync"
)

// Memory is an in-memory Store implementation. It is the default backend
// and the one the test suites inject.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	value, ok := m.items[key]
	m.mu.RUnlock()
	return value, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}
