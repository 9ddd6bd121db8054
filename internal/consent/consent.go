// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package consent persists the user's cookie-consent preferences and
// broadcasts grant/revoke events on the event bus. The necessary category
// is always on and not user-editable; everything else starts off until the
// user makes a choice.
package consent

import (
	"github.com/softdab/leadgate/internal/eventbus"
	"github.com/softdab/leadgate/internal/storage"
)

// StorageKey is versioned so a future record-shape change can invalidate
// stale persisted consent wholesale.
const StorageKey = "cookie_consent_v1"

// Record is a full consent decision. It is always written wholesale, never
// field by field.
type Record struct {
	Necessary  bool `json:"necessary"`
	Analytics  bool `json:"analytics"`
	Functional bool `json:"functional"`
	Marketing  bool `json:"marketing"`
}

// Default is the state before any user choice: necessary only.
func Default() Record {
	return Record{Necessary: true}
}

type Store struct {
	storage storage.Store
	bus     *eventbus.Bus
}

func New(st storage.Store, bus *eventbus.Bus) *Store {
	return &Store{storage: st, bus: bus}
}

// Load reads the persisted consent record. mustPrompt is true when no
// valid record exists, meaning the banner has to be shown. An unreadable
// record behaves like an absent one.
func (s *Store) Load() (Record, bool) {
	var rec Record
	if !storage.GetJSON(s.storage, StorageKey, &rec) {
		return Default(), true
	}
	rec.Necessary = true
	return rec, false
}

// AcceptAll grants every category.
func (s *Store) AcceptAll() Record {
	return s.save(Record{Necessary: true, Analytics: true, Functional: true, Marketing: true})
}

// RejectAll keeps only the necessary category.
func (s *Store) RejectAll() Record {
	return s.save(Default())
}

// SaveCustom persists a user-picked combination. The necessary flag is
// forced on regardless of input.
func (s *Store) SaveCustom(analytics, functional, marketing bool) Record {
	return s.save(Record{
		Necessary:  true,
		Analytics:  analytics,
		Functional: functional,
		Marketing:  marketing,
	})
}

// ReopenBanner asks the UI to show the consent banner again, optionally
// jumping straight to the customize view. It does not change stored
// consent.
func (s *Store) ReopenBanner(openCustomize bool) {
	s.bus.Publish(eventbus.Event{Topic: eventbus.TopicReopenBanner, OpenCustomize: openCustomize})
}

func (s *Store) save(rec Record) Record {
	// Persist first, then announce: listeners reading back the stored
	// record must observe the new state.
	_ = storage.SetJSON(s.storage, StorageKey, rec)
	s.bus.Publish(eventbus.Event{Topic: eventbus.TopicAnalyticsConsent, Granted: rec.Analytics})
	s.bus.Publish(eventbus.Event{Topic: eventbus.TopicMarketingConsent, Granted: rec.Marketing})
	return rec
}
