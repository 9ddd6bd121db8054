// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/softdab/leadgate/internal/csrf"
	"github.com/softdab/leadgate/internal/logger"
)

const encodingJSON = "application/json"

var (
	ErrDomainNotAllowed = fmt.Errorf("domain not allowed")
	ErrMissingFormID    = fmt.Errorf("missing form ID")
)

// TokenResponse is the JSON response struct for the token endpoint
type TokenResponse struct {
	Token      string `json:"token"`
	FormID     string `json:"form_id"`
	HeaderName string `json:"header_name"`
	URL        string `json:"url"`
	Encoding   string `json:"encoding"`
	ReqMethod  string `json:"request_method"`
}

// HandlerAPITokenGet issues a one-time submission token for the requested
// form. The token travels back to the client twice: in the response body
// for the X-CSRF-Token header and as the csrf_token cookie, so the send
// endpoint can verify both copies match.
func (s *Server) HandlerAPITokenGet(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	if formID == "" {
		_ = render.Render(w, r, ErrBadRequest(ErrMissingFormID))
		return
	}

	// Get the form definition
	def, err := s.formDefinition(formID)
	if err != nil {
		_ = render.Render(w, r, ErrBadRequest(err))
		return
	}

	// Validate that the request is coming from the correct origin
	origin := r.Header.Get("origin")
	if origin == "" {
		_ = render.Render(w, r, ErrForbidden(ErrDomainNotAllowed))
		return
	}
	if !originAllowed(origin, def.Domains) {
		s.log.Error("domain not allowed", slog.String("origin", origin), slog.String("form", def.ID),
			slog.Any("allowed_domains", def.Domains))
		_ = render.Render(w, r, ErrForbidden(ErrDomainNotAllowed))
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	schema := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		schema = "https"
	}
	token := s.tokens.IssueToken()
	http.SetCookie(w, s.tokens.Cookie(token))
	response := &TokenResponse{
		Token:      token,
		FormID:     def.ID,
		HeaderName: csrf.HeaderName,
		URL:        fmt.Sprintf("%s://%s/send/%s", schema, r.Host, url.QueryEscape(def.ID)),
		Encoding:   encodingJSON,
		ReqMethod:  http.MethodPost,
	}

	resp := NewResponse(http.StatusCreated, "submission token successfully created", response)
	if renderErr := render.Render(w, r, resp); renderErr != nil {
		s.log.Error("failed to render TokenResponse", logger.Err(renderErr))
	}
}

func originAllowed(origin string, domains []string) bool {
	for _, domain := range domains {
		if strings.EqualFold(origin, fmt.Sprintf("https://%s", domain)) {
			return true
		}
	}
	return false
}
