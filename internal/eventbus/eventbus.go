// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package eventbus implements the in-process pub/sub channel the consent
// store and the analytics loader communicate over. Topics are named, and
// subscribers get a handle to unsubscribe with, so a loader can detach on
// shutdown without tearing anything else down.
package eventbus

import "sync"

type Topic string

const (
	TopicAnalyticsConsent Topic = "analytics-consent-changed"
	TopicMarketingConsent Topic = "marketing-consent-changed"
	TopicReopenBanner     Topic = "reopen-consent-banner"
)

// Event is published on consent changes and banner-reopen requests.
// Granted carries the direction for the consent topics; OpenCustomize is
// only meaningful on TopicReopenBanner.
type Event struct {
	Topic         Topic
	Granted       bool
	OpenCustomize bool
}

type Handler func(Event)

type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Topic]map[int]Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[Topic]map[int]Handler)}
}

// Subscribe registers a handler for topic and returns an unsubscribe func.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[topic][id] = handler

	return func() {
		b.mu.Lock()
		delete(b.handlers[topic], id)
		b.mu.Unlock()
	}
}

// Publish delivers event synchronously to every handler subscribed to its
// topic. Handlers run on the caller's goroutine; delivery order between
// handlers is not guaranteed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Topic]))
	for _, handler := range b.handlers[event.Topic] {
		handlers = append(handlers, handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
