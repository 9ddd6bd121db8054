// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package ratelimit tracks submission attempts per logical action inside a
// rolling time window and escalates to a timed lockout once the attempt
// threshold is reached. Counters and the lockout timestamp are persisted
// through the storage capability so they survive restarts.
//
// The limiter never returns an error: an unreadable or unparsable record
// resolves to a fresh permissive state. This is a spam deterrent, not a
// security boundary.
package ratelimit

import (
	"fmt"
	"math"
	"time"

	"github.com/softdab/leadgate/internal/storage"
)

const (
	DefaultMaxAttempts   = 5
	DefaultWindow        = time.Minute
	DefaultBlockDuration = 30 * time.Minute

	keyPrefix = "ratelimit_"
)

// Config tunes a limiter. Zero fields fall back to the package defaults.
type Config struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// Result is the outcome of a Check. Message is only set on denial and is
// safe to surface to the user.
type Result struct {
	Allowed bool
	Message string
}

type record struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"timestamp"`
}

// Limiter gates a single named action, e.g. "contact-form".
type Limiter struct {
	store  storage.Store
	action string
	conf   Config
}

func New(store storage.Store, action string, conf Config) *Limiter {
	if conf.MaxAttempts <= 0 {
		conf.MaxAttempts = DefaultMaxAttempts
	}
	if conf.Window <= 0 {
		conf.Window = DefaultWindow
	}
	if conf.BlockDuration <= 0 {
		conf.BlockDuration = DefaultBlockDuration
	}
	return &Limiter{store: store, action: action, conf: conf}
}

// TrackAttempt increments the persisted attempt counter. If the window has
// rolled over, the counter restarts at 1 with a fresh window instead.
func (l *Limiter) TrackAttempt() {
	now := time.Now().UnixMilli()
	rec := l.load(now)
	if time.Duration(now-rec.WindowStart)*time.Millisecond > l.conf.Window {
		rec = record{Count: 1, WindowStart: now}
	} else {
		rec.Count++
	}
	_ = storage.SetJSON(l.store, l.attemptsKey(), rec)
}

// Check decides whether another attempt is allowed right now. Reaching the
// attempt threshold sets a lockout that outlives window resets until it
// expires on its own.
func (l *Limiter) Check() Result {
	now := time.Now().UnixMilli()

	if until, ok := l.blockedUntil(); ok && now < until {
		return Result{Allowed: false, Message: l.blockedMessage(until - now)}
	}

	rec := l.load(now)
	if time.Duration(now-rec.WindowStart)*time.Millisecond > l.conf.Window {
		_ = storage.SetJSON(l.store, l.attemptsKey(), record{Count: 0, WindowStart: now})
		return Result{Allowed: true}
	}

	if rec.Count >= l.conf.MaxAttempts {
		until := now + l.conf.BlockDuration.Milliseconds()
		_ = l.store.Set(l.blockKey(), fmt.Sprintf("%d", until))
		return Result{Allowed: false, Message: l.blockedMessage(until - now)}
	}

	return Result{Allowed: true}
}

// IsBlocked reports whether a lockout is currently active.
func (l *Limiter) IsBlocked() bool {
	until, ok := l.blockedUntil()
	return ok && time.Now().UnixMilli() < until
}

// IsLimited reports whether the attempt threshold has been reached within
// the current window. The UI uses it to disable the submit control before
// a lockout is triggered.
func (l *Limiter) IsLimited() bool {
	now := time.Now().UnixMilli()
	rec := l.load(now)
	if time.Duration(now-rec.WindowStart)*time.Millisecond > l.conf.Window {
		return false
	}
	return rec.Count >= l.conf.MaxAttempts
}

// Reset clears the persisted counter and lockout for this action.
func (l *Limiter) Reset() {
	l.store.Remove(l.attemptsKey())
	l.store.Remove(l.blockKey())
}

func (l *Limiter) load(now int64) record {
	rec := record{WindowStart: now}
	if !storage.GetJSON(l.store, l.attemptsKey(), &rec) {
		return record{WindowStart: now}
	}
	if rec.Count < 0 || rec.WindowStart <= 0 {
		return record{WindowStart: now}
	}
	return rec
}

func (l *Limiter) blockedUntil() (int64, bool) {
	raw, ok := l.store.Get(l.blockKey())
	if !ok {
		return 0, false
	}
	var until int64
	if _, err := fmt.Sscanf(raw, "%d", &until); err != nil {
		return 0, false
	}
	return until, true
}

func (l *Limiter) blockedMessage(remaining int64) string {
	minutes := int(math.Ceil(float64(remaining) / 1000 / 60))
	return fmt.Sprintf("Too many attempts. Please try again in %d minutes.", minutes)
}

func (l *Limiter) attemptsKey() string {
	return keyPrefix + l.action + "_attempts"
}

func (l *Limiter) blockKey() string {
	return keyPrefix + l.action + "_blocked_until"
}
