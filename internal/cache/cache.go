// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package cache implements a generic TTL cache on top of the storage
// capability. Expiry is evaluated lazily: an expired entry is treated as
// absent and deleted from the backing store on the read that finds it.
package cache

import (
	"encoding/json"
	"time"

	"github.com/softdab/leadgate/internal/storage"
)

// DefaultTTL applies when Set is called with a zero TTL.
const DefaultTTL = time.Hour

const keyPrefix = "cache_"

type entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

type Cache struct {
	store storage.Store
}

func New(store storage.Store) *Cache {
	return &Cache{store: store}
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return storage.SetJSON(c.store, keyPrefix+key, entry{
		Value:     raw,
		Timestamp: time.Now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
}

// Get unmarshals the cached value for key into target and reports whether
// a live entry was found. An expired entry is removed from the backing
// store and reported as absent.
func (c *Cache) Get(key string, target any) bool {
	var item entry
	if !storage.GetJSON(c.store, keyPrefix+key, &item) {
		return false
	}
	if time.Now().UnixMilli()-item.Timestamp > item.TTL {
		c.store.Remove(keyPrefix + key)
		return false
	}
	if err := json.Unmarshal(item.Value, target); err != nil {
		return false
	}
	return true
}

// Remove deletes the entry for key.
func (c *Cache) Remove(key string) {
	c.store.Remove(keyPrefix + key)
}

// Clear removes every entry under this cache's namespace. Other keys in
// the backing store are left alone.
func (c *Cache) Clear() {
	for _, key := range c.store.Keys(keyPrefix) {
		c.store.Remove(key)
	}
}
