// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File is a Store implementation backed by a single JSON file. The whole
// map is rewritten on every mutation, which is fine for the handful of
// rate-limit and consent records this service keeps. A missing or corrupt
// file resolves to an empty store rather than an error, so limits and
// consent fall back to a fresh permissive state.
type File struct {
	mu    sync.RWMutex
	path  string
	items map[string]string
}

// NewFile opens (or initializes) a file-backed store at path.
func NewFile(path string) (*File, error) {
	f := &File{path: path, items: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return f, nil
	}
	if unmarshalErr := json.Unmarshal(raw, &f.items); unmarshalErr != nil {
		f.items = make(map[string]string)
	}
	return f, nil
}

func (f *File) Get(key string) (string, bool) {
	f.mu.RLock()
	value, ok := f.items[key]
	f.mu.RUnlock()
	return value, ok
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
	return f.persist()
}

func (f *File) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	_ = f.persist()
}

func (f *File) Keys(prefix string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.items))
	for key := range f.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (f *File) persist() error {
	raw, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage file: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err = os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	return nil
}
