// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package storage provides a pluggable namespaced key-value persistence
// capability. The rate limiter, consent store and TTL cache all persist
// their state through the Store interface, so the same logic runs against
// the in-memory implementation in tests and the file-backed implementation
// in production.
package storage

import (
	"encoding/json"
	"fmt"
)

// Store is a flat string key-value store. Implementations must be safe for
// concurrent use. Reads never fail; a missing or unreadable key reports
// absence, so components built on top stay fail-open.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
	Keys(prefix string) []string
}

// GetJSON reads key from the store and unmarshals it into target. It
// returns false if the key is absent or holds a value that does not parse,
// leaving target untouched in the latter case only as far as json.Unmarshal
// got.
func GetJSON(s Store, key string, target any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return false
	}
	return true
}

// SetJSON marshals value and stores it under key.
func SetJSON(s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %q: %w", key, err)
	}
	return s.Set(key, string(raw))
}
