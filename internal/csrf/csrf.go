// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package csrf manages the anti-CSRF tokens attached to form submissions.
// Tokens are single-use: validation consumes them. There is no per-token
// expiry; instead the whole valid set is cleared unconditionally on a fixed
// interval. A token issued right before the sweep fires dies almost
// immediately while one issued right after lives nearly the full interval.
// For a marketing contact form this imprecision is acceptable.
package csrf

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the cookie the token is mirrored into for transport
	// alongside the request.
	CookieName = "csrf_token"
	// HeaderName carries the token on unsafe requests.
	HeaderName = "X-CSRF-Token"

	DefaultSweepInterval = time.Hour
)

// Manager issues and validates single-use tokens. Construct one per
// process (or per test) with New and run its sweep with Start/Stop.
type Manager struct {
	mu       sync.Mutex
	tokens   map[string]struct{}
	interval time.Duration
	stop     chan struct{}
}

// New returns a manager that clears its token set every interval once
// Start is called. A non-positive interval falls back to
// DefaultSweepInterval.
func New(interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Manager{
		tokens:   make(map[string]struct{}),
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the periodic bulk sweep.
func (m *Manager) Start() {
	go m.sweepLoop()
}

// Stop shuts down the sweep goroutine.
func (m *Manager) Stop() {
	close(m.stop)
}

// IssueToken generates a cryptographically random token and adds it to the
// valid set.
func (m *Manager) IssueToken() string {
	token := uuid.NewString()
	m.mu.Lock()
	m.tokens[token] = struct{}{}
	m.mu.Unlock()
	return token
}

// ValidateToken reports whether token is currently valid and consumes it.
// A second validation of the same token fails.
func (m *Manager) ValidateToken(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return false
	}
	delete(m.tokens, token)
	return true
}

// Cookie builds the transport cookie for token.
func (m *Manager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// AttachToken issues a fresh token and attaches it to the outbound request
// as both the X-CSRF-Token header and the csrf_token cookie. It returns
// the issued token.
func (m *Manager) AttachToken(req *http.Request) string {
	token := m.IssueToken()
	req.Header.Set(HeaderName, token)
	req.AddCookie(m.Cookie(token))
	return token
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			clear(m.tokens)
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}
