// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package sanitize strips HTML and script content from user-entered form
// values before validation. The policy is strict: lead-form fields are
// plain text, so every tag goes.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a sanitizer with a strip-everything policy. The sanitizer is
// safe for concurrent use.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// String trims surrounding whitespace and removes all HTML elements,
// event handlers and script content from value. It is idempotent:
// String(String(v)) == String(v).
func (s *Sanitizer) String(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(strings.TrimSpace(value)))
}

// Strings sanitizes every element of values in place and returns the slice.
func (s *Sanitizer) Strings(values []string) []string {
	for i, value := range values {
		values[i] = s.String(value)
	}
	return values
}
