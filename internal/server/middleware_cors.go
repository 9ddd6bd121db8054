// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/softdab/leadgate/internal/csrf"
	"github.com/softdab/leadgate/internal/logger"
)

const AccessControlMaxAge = "600"

func (s *Server) preflightCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		formID := chi.URLParam(r, "formID")
		if formID == "" {
			s.log.Warn("missing form ID", slog.Any("headers", r.Header), slog.String("origin", origin),
				slog.String("path", r.URL.Path), slog.String("method", r.Method))
			next.ServeHTTP(w, r)
			return
		}
		def, err := s.formDefinition(formID)
		if err != nil || def == nil {
			s.log.Error("failed to load form definition", logger.Err(err), slog.String("formID", formID))
			next.ServeHTTP(w, r)
			return
		}

		if !originAllowed(origin, def.Domains) {
			s.log.Warn("origin not allowed", slog.String("origin", origin), slog.String("form", formID))
			w.WriteHeader(http.StatusForbidden)
			return
		}

		// must be set for all CORS responses; credentials are required
		// for the csrf_token cookie to travel
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")

		// Set CORS headers for preflight requests
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+csrf.HeaderName)
			w.Header().Set("Access-Control-Max-Age", AccessControlMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
