// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jellydator/ttlcache/v2"

	"github.com/softdab/leadgate/internal/cache"
	"github.com/softdab/leadgate/internal/config"
	"github.com/softdab/leadgate/internal/csrf"
	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/httpclient"
	"github.com/softdab/leadgate/internal/logger"
	"github.com/softdab/leadgate/internal/ratelimit"
	"github.com/softdab/leadgate/internal/storage"
	"github.com/softdab/leadgate/internal/submit"
)

// Version is the version of the application (will be set at build time)
var Version = "dev"

type Server struct {
	config     *config.Config
	forms      *ttlcache.Cache
	httpClient *httpclient.Client
	httpSrv    *http.Server
	log        *logger.Logger
	mux        *chi.Mux
	store      storage.Store
	tokens     *csrf.Manager
}

// New returns a new server instance
func New(conf *config.Config, log *logger.Logger) (*Server, error) {
	mux := chi.NewMux()
	listenAddr := net.JoinHostPort(conf.Server.BindAddress, conf.Server.BindPort)

	store, err := newStore(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	formCache := ttlcache.NewCache()
	if err = formCache.SetTTL(conf.Forms.CacheLifetime); err != nil {
		return nil, fmt.Errorf("failed to set default TTL on form cache: %w", err)
	}

	return &Server{
		config:     conf,
		forms:      formCache,
		httpClient: httpclient.New(log, cache.New(store)),
		httpSrv: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadTimeout:       conf.Server.Timeout,
			ReadHeaderTimeout: conf.Server.Timeout,
			WriteTimeout:      conf.Server.Timeout,
			IdleTimeout:       conf.Server.Timeout,
		},
		log:    log,
		mux:    mux,
		store:  store,
		tokens: csrf.New(conf.CSRF.SweepInterval),
	}, nil
}

// Start starts up the server and waits for a shutdown signal
func (s *Server) Start(ctx context.Context) error {
	ctxServer, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	s.log.Info("starting leadgate http server", slog.String("listen_addr", s.httpSrv.Addr))

	// Assign routes
	s.routes(ctxServer)

	// Start the token sweeper
	s.tokens.Start()

	// Start http server
	listenerFailed := false
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("failed to start http listener", logger.Err(err))
			listenerFailed = true
		}
		cancelServer()
	}()
	<-ctxServer.Done()
	if listenerFailed {
		return fmt.Errorf("failed to start http listener")
	}

	// Shut down server and services
	s.log.Info("shutting down leadgate http server")
	ctxShutdown, cancelStop := context.WithTimeout(ctxServer, time.Second*5)
	defer cancelStop()
	if err := s.httpSrv.Shutdown(ctxShutdown); err != nil {
		s.log.Error("failed to shut down http server gracefully", logger.Err(err))
	}
	s.tokens.Stop()
	if err := s.forms.Close(); err != nil {
		s.log.Error("failed to close form cache", logger.Err(err))
	}

	return nil
}

// formDefinition returns the definition for formID either from the
// in-memory cache or, if not cached yet, from the file system.
func (s *Server) formDefinition(formID string) (*forms.Definition, error) {
	cached, err := s.forms.Get("formDef_" + formID)
	if err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
		return nil, err
	}
	if cached != nil {
		return cached.(*forms.Definition), nil
	}

	def, err := forms.Load(s.config.Forms.Path, formID)
	if err != nil {
		return nil, err
	}
	if err = s.forms.Set("formDef_"+def.ID, def); err != nil {
		return nil, err
	}

	return def, nil
}

// pipeline builds the submission pipeline for def. Definitions with an
// upstream URL are forwarded over HTTP, all others are delivered via mail.
func (s *Server) pipeline(def *forms.Definition) *submit.Pipeline {
	var deliverer submit.Deliverer
	if def.Upstream.URL != "" {
		deliverer = submit.NewUpstreamDeliverer(s.httpClient, s.tokens, s.log)
	} else {
		deliverer = NewMailDeliverer(s.log)
	}
	return submit.New(def, s.store, deliverer, s.log, ratelimit.Config{
		MaxAttempts:   s.config.RateLimit.MaxAttempts,
		Window:        s.config.RateLimit.Window,
		BlockDuration: s.config.RateLimit.BlockDuration,
	})
}

func newStore(conf *config.Config) (storage.Store, error) {
	switch conf.Storage.Type {
	case "", "inmemory":
		return storage.NewMemory(), nil
	case "file":
		return storage.NewFile(conf.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", conf.Storage.Type)
	}
}
