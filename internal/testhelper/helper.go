// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package testhelper

import (
	stdhttp "net/http"
	"os"
	"strings"
	"testing"
)

func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if val := os.Getenv("PERFORM_INTEGRATION_TEST"); !strings.EqualFold(val, "true") {
		t.Skip("skipping integration test")
	}
}

// MockRoundTripper lets tests stub HTTP transport behavior without a
// network listener.
type MockRoundTripper struct {
	Fn func(req *stdhttp.Request) (*stdhttp.Response, error)
}

func (m MockRoundTripper) RoundTrip(req *stdhttp.Request) (*stdhttp.Response, error) {
	return m.Fn(req)
}
