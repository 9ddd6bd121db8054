// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package analytics reacts to consent events by injecting or removing the
// third-party analytics script pair. The DOM side effects are abstracted
// behind the ScriptLoader and CookieJar capabilities so the consent
// reaction logic runs against fakes in tests.
package analytics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/softdab/leadgate/internal/consent"
	"github.com/softdab/leadgate/internal/eventbus"
)

const (
	DefaultMeasurementID = "G-BPPL55293F"

	// Element IDs for the loader script and the inline config script.
	ScriptID       = "ga-script"
	ConfigScriptID = "ga-config"

	// CookiePrefix matches every cookie the analytics vendor sets.
	CookiePrefix = "_ga"
)

// ScriptLoader is the capability for injecting and removing script tags,
// keyed by element ID.
type ScriptLoader interface {
	Load(id, src string) error
	LoadInline(id, body string) error
	Unload(id string)
	Exists(id string) bool
}

// CookieJar exposes the cookies visible to the page.
type CookieJar interface {
	Names() []string
	Delete(name string)
}

// QueuedEvent is a tracking call buffered while the vendor script is
// active. The queue is dropped wholesale on consent revocation.
type QueuedEvent struct {
	Name   string
	Params map[string]any
}

// Loader is a passive consent listener with no rendered output.
type Loader struct {
	measurementID string
	scripts       ScriptLoader
	cookies       CookieJar
	consent       *consent.Store
	bus           *eventbus.Bus

	mu      sync.Mutex
	enabled bool
	queue   []QueuedEvent
	unsubs  []func()
}

// Option configures a Loader.
type Option func(*Loader)

// WithMeasurementID overrides the vendor measurement ID.
func WithMeasurementID(id string) Option {
	return func(l *Loader) { l.measurementID = id }
}

func New(scripts ScriptLoader, cookies CookieJar, consentStore *consent.Store, bus *eventbus.Bus, opts ...Option) *Loader {
	loader := &Loader{
		measurementID: DefaultMeasurementID,
		scripts:       scripts,
		cookies:       cookies,
		consent:       consentStore,
		bus:           bus,
	}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

// Start reads the persisted consent, loads the scripts if analytics is
// already granted, and subscribes to future grant/revoke events.
func (l *Loader) Start() {
	if rec, mustPrompt := l.consent.Load(); !mustPrompt && rec.Analytics {
		l.enable()
	}
	unsub := l.bus.Subscribe(eventbus.TopicAnalyticsConsent, func(event eventbus.Event) {
		if event.Granted {
			l.enable()
			return
		}
		l.disable()
	})
	l.unsubs = append(l.unsubs, unsub)
}

// Close detaches the consent listeners. Loaded scripts are left in place:
// in a single-page app they persist across navigation.
func (l *Loader) Close() {
	for _, unsub := range l.unsubs {
		unsub()
	}
	l.unsubs = nil
}

// Track buffers a tracking event. Events sent while analytics is not
// enabled are dropped.
func (l *Loader) Track(name string, params map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}
	l.queue = append(l.queue, QueuedEvent{Name: name, Params: params})
}

// Queue returns a copy of the buffered tracking events.
func (l *Loader) Queue() []QueuedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := make([]QueuedEvent, len(l.queue))
	copy(queue, l.queue)
	return queue
}

func (l *Loader) enable() {
	l.mu.Lock()
	l.enabled = true
	l.mu.Unlock()

	// Idempotent: a second grant must not insert duplicate tags.
	if l.scripts.Exists(ScriptID) {
		return
	}
	src := fmt.Sprintf("https://www.googletagmanager.com/gtag/js?id=%s", l.measurementID)
	if err := l.scripts.Load(ScriptID, src); err != nil {
		return
	}
	_ = l.scripts.LoadInline(ConfigScriptID, l.configSnippet())
}

func (l *Loader) disable() {
	l.scripts.Unload(ScriptID)
	l.scripts.Unload(ConfigScriptID)

	l.mu.Lock()
	l.enabled = false
	l.queue = nil
	l.mu.Unlock()

	for _, name := range l.cookies.Names() {
		if strings.HasPrefix(name, CookiePrefix) {
			l.cookies.Delete(name)
		}
	}
}

func (l *Loader) configSnippet() string {
	return fmt.Sprintf(`window.dataLayer = window.dataLayer || [];
function gtag(){dataLayer.push(arguments);}
gtag('js', new Date());
gtag('config', '%s', { anonymize_ip: true, cookie_flags: 'SameSite=None;Secure' });`, l.measurementID)
}
