// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/softdab/leadgate/internal/csrf"
	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/logger"
	"github.com/softdab/leadgate/internal/submit"
)

// maxBodySize caps the JSON submission payload
const maxBodySize = 1 << 20

var (
	ErrInvalidCSRFToken  = errors.New("Invalid CSRF token")
	ErrFailedToParseBody = errors.New("failed to parse submission body")
	ErrSubmissionFailed  = errors.New("submission could not be processed")
)

// SendResponse is the JSON response struct for a successful submission
type SendResponse struct {
	FormID  string `json:"form_id"`
	Message string `json:"message"`
}

// HandlerAPISendPost accepts a form submission. The request must carry
// the one-time token issued by the token endpoint in both the
// X-CSRF-Token header and the csrf_token cookie; the submission then
// runs through the honeypot, rate-limit and validation gates before
// delivery.
func (s *Server) HandlerAPISendPost(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	if formID == "" {
		_ = render.Render(w, r, ErrBadRequest(ErrMissingFormID))
		return
	}

	def, err := s.formDefinition(formID)
	if err != nil {
		_ = render.Render(w, r, ErrBadRequest(err))
		return
	}

	// Double-submit check: header and cookie must carry the same token
	// and the token must be known and unused.
	headerToken := r.Header.Get(csrf.HeaderName)
	cookieToken := ""
	if cookie, cookieErr := r.Cookie(csrf.CookieName); cookieErr == nil {
		cookieToken = cookie.Value
	}
	if headerToken == "" || cookieToken == "" || headerToken != cookieToken {
		s.log.Warn("csrf token mismatch", slog.String("form", def.ID))
		_ = render.Render(w, r, ErrForbidden(ErrInvalidCSRFToken))
		return
	}
	if !s.tokens.ValidateToken(headerToken) {
		s.log.Warn("unknown or reused csrf token", slog.String("form", def.ID))
		_ = render.Render(w, r, ErrForbidden(ErrInvalidCSRFToken))
		return
	}

	var sub forms.Submission
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err = render.DecodeJSON(r.Body, &sub); err != nil {
		s.log.Error("failed to decode submission body", logger.Err(err))
		_ = render.Render(w, r, ErrBadRequest(ErrFailedToParseBody))
		return
	}
	if sub.UserAgent == "" {
		sub.UserAgent = r.UserAgent()
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = time.Now().UTC()
	}

	pipeline := s.pipeline(def)
	_, message, err := pipeline.Submit(r.Context(), clientKey(r), sub)
	if err != nil {
		s.renderSubmitError(w, r, def, err)
		return
	}

	s.log.Info("submission successfully delivered", slog.String("form", def.ID))
	resp := NewResponse(http.StatusOK, message, SendResponse{FormID: def.ID, Message: message})
	if renderErr := render.Render(w, r, resp); renderErr != nil {
		s.log.Error("failed to render SendResponse", logger.Err(renderErr))
	}
}

func (s *Server) renderSubmitError(w http.ResponseWriter, r *http.Request, def *forms.Definition, err error) {
	var botErr *submit.BotError
	var limitErr *submit.RateLimitError
	var valErr *submit.ValidationError
	var delErr *submit.DeliveryError
	switch {
	case errors.As(err, &botErr):
		_ = render.Render(w, r, ErrBadRequest(ErrSubmissionFailed))
	case errors.As(err, &limitErr):
		_ = render.Render(w, r, ErrTooManyRequests(errors.New(limitErr.Message)))
	case errors.As(err, &valErr):
		resp := &Response{
			Success:    false,
			StatusCode: http.StatusUnprocessableEntity,
			Status:     http.StatusText(http.StatusUnprocessableEntity),
			Message:    "submission validation failed",
			Data:       valErr.Errors,
		}
		for _, fieldErr := range valErr.Errors {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message))
		}
		_ = render.Render(w, r, resp)
	case errors.As(err, &delErr):
		s.log.Error("submission delivery failed", logger.Err(delErr.Unwrap()),
			slog.String("form", def.ID), slog.Int("status_code", delErr.StatusCode))
		_ = render.Render(w, r, ErrUpstream(delErr.StatusCode, errors.New(delErr.Message)))
	default:
		s.log.Error("unexpected submission failure", logger.Err(err), slog.String("form", def.ID))
		_ = render.Render(w, r, ErrUnexpected(ErrSubmissionFailed))
	}
}

// clientKey identifies the submitting client for rate limiting. RealIP
// has already resolved proxy headers at this point.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
