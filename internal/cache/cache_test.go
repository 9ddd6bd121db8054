// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/softdab/leadgate/internal/storage"
)

func TestCache_Get(t *testing.T) {
	t.Run("get returns a live entry", func(t *testing.T) {
		store := storage.NewMemory()
		c := New(store)
		if err := c.Set("key", "value", time.Minute); err != nil {
			t.Fatalf("failed to set cache entry: %s", err)
		}

		var got string
		if !c.Get("key", &got) {
			t.Fatal("expected entry to be present")
		}
		if got != "value" {
			t.Errorf("expected value to be %q, got %q", "value", got)
		}
	})
	t.Run("get does not find a missing entry", func(t *testing.T) {
		c := New(storage.NewMemory())
		var got string
		if c.Get("missing", &got) {
			t.Error("expected entry to be absent")
		}
	})
	t.Run("expired entry is absent and lazily deleted", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			store := storage.NewMemory()
			c := New(store)
			if err := c.Set("key", "value", 100*time.Millisecond); err != nil {
				t.Fatalf("failed to set cache entry: %s", err)
			}

			var got string
			if !c.Get("key", &got) {
				t.Fatal("expected entry to be live immediately after set")
			}

			time.Sleep(150 * time.Millisecond)
			synctest.Wait()
			if c.Get("key", &got) {
				t.Error("expected entry to be expired")
			}
			if _, ok := store.Get("cache_key"); ok {
				t.Error("expected expired entry to be removed from the backing store")
			}
		})
	})
	t.Run("structured values round-trip", func(t *testing.T) {
		type payload struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		c := New(storage.NewMemory())
		if err := c.Set("key", payload{Name: "acme", Count: 2}, time.Minute); err != nil {
			t.Fatalf("failed to set cache entry: %s", err)
		}
		var got payload
		if !c.Get("key", &got) {
			t.Fatal("expected entry to be present")
		}
		if got.Name != "acme" || got.Count != 2 {
			t.Errorf("unexpected payload: %+v", got)
		}
	})
}

func TestCache_Clear(t *testing.T) {
	t.Run("clear only removes namespaced keys", func(t *testing.T) {
		store := storage.NewMemory()
		c := New(store)
		if err := c.Set("one", 1, time.Minute); err != nil {
			t.Fatalf("failed to set cache entry: %s", err)
		}
		if err := c.Set("two", 2, time.Minute); err != nil {
			t.Fatalf("failed to set cache entry: %s", err)
		}
		if err := store.Set("consent", "{}"); err != nil {
			t.Fatalf("failed to set unrelated key: %s", err)
		}

		c.Clear()

		var got int
		if c.Get("one", &got) || c.Get("two", &got) {
			t.Error("expected cache entries to be cleared")
		}
		if _, ok := store.Get("consent"); !ok {
			t.Error("expected unrelated key to survive clear")
		}
	})
}

func TestCache_Remove(t *testing.T) {
	t.Run("remove deletes a single entry", func(t *testing.T) {
		c := New(storage.NewMemory())
		if err := c.Set("key", "value", time.Minute); err != nil {
			t.Fatalf("failed to set cache entry: %s", err)
		}
		c.Remove("key")
		var got string
		if c.Get("key", &got) {
			t.Error("expected entry to be removed")
		}
	})
}
