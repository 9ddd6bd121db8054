// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/softdab/leadgate/internal/config"
	"github.com/softdab/leadgate/internal/csrf"
	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/logger"
)

const testOrigin = "https://example.com"

const contactDefinition = `id: contact
domains:
  - example.com
sender: noreply@example.com
recipients:
  - lead@example.com
server:
  host: localhost
  dry_run: true
`

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []string        `json:"errors"`
}

func testServer(t *testing.T, definitions map[string]string) *Server {
	t.Helper()
	formsPath := t.TempDir()
	for name, content := range definitions {
		if err := os.WriteFile(filepath.Join(formsPath, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write form definition: %s", err)
		}
	}

	conf := new(config.Config)
	conf.Log.Level = slog.LevelError
	conf.Forms.Path = formsPath
	conf.Forms.CacheLifetime = 10 * time.Minute
	conf.Storage.Type = "inmemory"
	conf.CSRF.SweepInterval = csrf.DefaultSweepInterval

	srv, err := New(conf, logger.NewLogger(slog.LevelError, io.Discard, logger.Opts{}))
	if err != nil {
		t.Fatalf("failed to create server: %s", err)
	}
	if err = srv.routes(t.Context()); err != nil {
		t.Fatalf("failed to register routes: %s", err)
	}
	return srv
}

func performRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.0.2.1:51234"
	}
	recorder := httptest.NewRecorder()
	srv.mux.ServeHTTP(recorder, req)
	return recorder
}

func fetchToken(t *testing.T, srv *Server, formID string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/token/"+formID, nil)
	req.Header.Set("Origin", testOrigin)
	recorder := performRequest(srv, req)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("failed to fetch token, got status: %d, body: %s", recorder.Code,
			recorder.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal token response: %s", err)
	}
	var token TokenResponse
	if err := json.Unmarshal(resp.Data, &token); err != nil {
		t.Fatalf("failed to unmarshal token data: %s", err)
	}
	if token.Token == "" {
		t.Fatal("expected a non-empty token")
	}
	return token.Token
}

func submitBody(t *testing.T) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(testSubmission())
	if err != nil {
		t.Fatalf("failed to marshal submission: %s", err)
	}
	return bytes.NewReader(payload)
}

func testSubmission() forms.Submission {
	return forms.Submission{
		Name:        "Jane Doe",
		Email:       "jane@acme-corp.com",
		Company:     "ACME Corp",
		Role:        "CTO",
		Service:     "Dedicated Team",
		Timeline:    "1-3 months",
		Budget:      "$10k-$50k",
		Message:     "We need a dedicated team for our platform rebuild.",
		GDPRConsent: true,
		Page:        "/contact",
	}
}

func sendRequest(t *testing.T, srv *Server, formID, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send/"+formID, body)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(csrf.HeaderName, token)
		req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: token})
	}
	return performRequest(srv, req)
}

func TestServer_HandlerAPIPingGet(t *testing.T) {
	srv := testServer(t, nil)
	t.Run("ping responds with pong", func(t *testing.T) {
		recorder := performRequest(srv, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if recorder.Code != http.StatusOK {
			t.Errorf("expected status 200, got: %d", recorder.Code)
		}
		var resp envelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal ping response: %s", err)
		}
		var ping PingResponse
		if err := json.Unmarshal(resp.Data, &ping); err != nil {
			t.Fatalf("failed to unmarshal ping data: %s", err)
		}
		if ping.Ping != "pong" {
			t.Errorf("expected pong, got: %q", ping.Ping)
		}
	})
	t.Run("security headers are set", func(t *testing.T) {
		recorder := performRequest(srv, httptest.NewRequest(http.MethodGet, "/ping", nil))
		checks := map[string]string{
			"X-Frame-Options":        "DENY",
			"X-Content-Type-Options": "nosniff",
			"Referrer-Policy":        "strict-origin-when-cross-origin",
		}
		for header, want := range checks {
			if got := recorder.Header().Get(header); got != want {
				t.Errorf("expected %s header to be %q, got: %q", header, want, got)
			}
		}
		if recorder.Header().Get("Strict-Transport-Security") == "" {
			t.Error("expected Strict-Transport-Security header to be set")
		}
		if recorder.Header().Get("Content-Security-Policy") == "" {
			t.Error("expected Content-Security-Policy header to be set")
		}
	})
}

func TestServer_HandlerAPITokenGet(t *testing.T) {
	srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
	t.Run("token is issued for allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/token/contact", nil)
		req.Header.Set("Origin", testOrigin)
		recorder := performRequest(srv, req)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got: %d", recorder.Code)
		}

		var resp envelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal token response: %s", err)
		}
		var token TokenResponse
		if err := json.Unmarshal(resp.Data, &token); err != nil {
			t.Fatalf("failed to unmarshal token data: %s", err)
		}
		if token.FormID != "contact" {
			t.Errorf("expected form ID contact, got: %q", token.FormID)
		}
		if token.HeaderName != csrf.HeaderName {
			t.Errorf("expected header name %q, got: %q", csrf.HeaderName, token.HeaderName)
		}

		cookieToken := ""
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == csrf.CookieName {
				cookieToken = cookie.Value
				if !cookie.Secure || cookie.SameSite != http.SameSiteStrictMode || cookie.Path != "/" {
					t.Errorf("unexpected cookie attributes: %+v", cookie)
				}
			}
		}
		if cookieToken != token.Token {
			t.Errorf("expected cookie to carry the issued token, got: %q", cookieToken)
		}
	})
	t.Run("missing origin is forbidden", func(t *testing.T) {
		recorder := performRequest(srv, httptest.NewRequest(http.MethodGet, "/token/contact", nil))
		if recorder.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got: %d", recorder.Code)
		}
	})
	t.Run("unlisted origin is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/token/contact", nil)
		req.Header.Set("Origin", "https://evil.example")
		recorder := performRequest(srv, req)
		if recorder.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got: %d", recorder.Code)
		}
	})
	t.Run("unknown form is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/token/unknown", nil)
		req.Header.Set("Origin", testOrigin)
		recorder := performRequest(srv, req)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got: %d", recorder.Code)
		}
	})
}

func TestServer_HandlerAPISendPost(t *testing.T) {
	t.Run("valid submission is accepted", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		token := fetchToken(t, srv, "contact")
		recorder := sendRequest(t, srv, "contact", token, submitBody(t))
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got: %d, body: %s", recorder.Code, recorder.Body.String())
		}
		var resp envelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal send response: %s", err)
		}
		if !resp.Success {
			t.Error("expected successful response envelope")
		}
	})
	t.Run("missing token is forbidden", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		recorder := sendRequest(t, srv, "contact", "", submitBody(t))
		if recorder.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got: %d", recorder.Code)
		}
	})
	t.Run("header and cookie token mismatch is forbidden", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		token := fetchToken(t, srv, "contact")
		req := httptest.NewRequest(http.MethodPost, "/send/contact", submitBody(t))
		req.Header.Set("Origin", testOrigin)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(csrf.HeaderName, token)
		req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: "other-token"})
		recorder := performRequest(srv, req)
		if recorder.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got: %d", recorder.Code)
		}
	})
	t.Run("token cannot be used twice", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		token := fetchToken(t, srv, "contact")
		if recorder := sendRequest(t, srv, "contact", token, submitBody(t)); recorder.Code != http.StatusOK {
			t.Fatalf("expected first submission to succeed, got: %d", recorder.Code)
		}
		if recorder := sendRequest(t, srv, "contact", token, submitBody(t)); recorder.Code != http.StatusForbidden {
			t.Errorf("expected replayed token to be forbidden, got: %d", recorder.Code)
		}
	})
	t.Run("invalid submission returns field errors", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		token := fetchToken(t, srv, "contact")
		sub := testSubmission()
		sub.Email = "jane@gmail.com"
		payload, _ := json.Marshal(sub)
		recorder := sendRequest(t, srv, "contact", token, bytes.NewReader(payload))
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got: %d", recorder.Code)
		}
		var resp envelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal error response: %s", err)
		}
		found := false
		for _, errMsg := range resp.Errors {
			if errMsg == "email: Please use your business email" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected business email violation, got: %v", resp.Errors)
		}
	})
	t.Run("filled honeypot is rejected without detail", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		token := fetchToken(t, srv, "contact")
		sub := testSubmission()
		sub.Website = "http://spam.example"
		payload, _ := json.Marshal(sub)
		recorder := sendRequest(t, srv, "contact", token, bytes.NewReader(payload))
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got: %d", recorder.Code)
		}
		if bytes.Contains(recorder.Body.Bytes(), []byte("honeypot")) {
			t.Error("expected response to not mention the honeypot")
		}
	})
	t.Run("sixth submission within the window is rate limited", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		for i := 0; i < 5; i++ {
			token := fetchToken(t, srv, "contact")
			if recorder := sendRequest(t, srv, "contact", token, submitBody(t)); recorder.Code != http.StatusOK {
				t.Fatalf("expected submission %d to succeed, got: %d", i+1, recorder.Code)
			}
		}
		token := fetchToken(t, srv, "contact")
		recorder := sendRequest(t, srv, "contact", token, submitBody(t))
		if recorder.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status 429, got: %d", recorder.Code)
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Too many attempts")) {
			t.Errorf("expected rate limit message, got: %s", recorder.Body.String())
		}
	})
	t.Run("malformed body is rejected", func(t *testing.T) {
		srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
		token := fetchToken(t, srv, "contact")
		recorder := sendRequest(t, srv, "contact", token, bytes.NewReader([]byte("{not json")))
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got: %d", recorder.Code)
		}
	})
}

func TestServer_UpstreamDelivery(t *testing.T) {
	t.Run("submission is forwarded to the upstream endpoint", func(t *testing.T) {
		var received forms.Submission
		var gotHeader string
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get(csrf.HeaderName)
			_ = json.NewDecoder(r.Body).Decode(&received)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"Form submitted successfully"}`))
		}))
		defer upstream.Close()

		definition := fmt.Sprintf(`id: contact
domains:
  - example.com
upstream:
  url: %s
`, upstream.URL)
		srv := testServer(t, map[string]string{"contact.yaml": definition})
		token := fetchToken(t, srv, "contact")
		recorder := sendRequest(t, srv, "contact", token, submitBody(t))
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got: %d, body: %s", recorder.Code, recorder.Body.String())
		}
		if received.Email != "jane@acme-corp.com" {
			t.Errorf("expected upstream to receive the submission, got email: %q", received.Email)
		}
		if gotHeader == "" {
			t.Error("expected upstream request to carry a token header")
		}
		var resp envelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal send response: %s", err)
		}
		if resp.Message != "Form submitted successfully" {
			t.Errorf("expected upstream message to pass through, got: %q", resp.Message)
		}
	})
	t.Run("upstream failure surfaces its status", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"detail":"upstream unavailable"}`))
		}))
		defer upstream.Close()

		definition := fmt.Sprintf(`id: contact
domains:
  - example.com
upstream:
  url: %s
`, upstream.URL)
		srv := testServer(t, map[string]string{"contact.yaml": definition})
		token := fetchToken(t, srv, "contact")
		recorder := sendRequest(t, srv, "contact", token, submitBody(t))
		if recorder.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got: %d", recorder.Code)
		}
	})
}

func TestServer_PreflightCheck(t *testing.T) {
	srv := testServer(t, map[string]string{"contact.yaml": contactDefinition})
	t.Run("preflight for allowed origin succeeds", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/send/contact", nil)
		req.Header.Set("Origin", testOrigin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		recorder := performRequest(srv, req)
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got: %d", recorder.Code)
		}
		if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
			t.Errorf("expected origin to be allowed, got: %q", got)
		}
		if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials to be allowed")
		}
	})
	t.Run("preflight for unlisted origin is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/send/contact", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		recorder := performRequest(srv, req)
		if recorder.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got: %d", recorder.Code)
		}
	})
}
