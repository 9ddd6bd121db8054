// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package submit composes the form-submission safety pipeline. For every
// submission the order is fixed: honeypot check, rate-limit gate,
// sanitize/validate, then delivery. Each failure category maps to its own
// error type so the HTTP layer can answer with the right status and
// message without leaking why a bot was rejected.
package submit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/logger"
	"github.com/softdab/leadgate/internal/ratelimit"
	"github.com/softdab/leadgate/internal/sanitize"
	"github.com/softdab/leadgate/internal/storage"
	"github.com/softdab/leadgate/internal/validate"
)

// GenericFailureMessage is what bots and unexpected failures see. It
// deliberately does not say which check fired.
const GenericFailureMessage = "submission could not be processed"

// BotError signals a honeypot hit. Its message is generic on purpose.
type BotError struct{}

func (e *BotError) Error() string { return GenericFailureMessage }

// RateLimitError carries the human-readable remaining-time message.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string { return e.Message }

// ValidationError carries every violated field.
type ValidationError struct {
	Errors []validate.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Errors))
}

// DeliveryError wraps an upstream or mail failure with a user-safe
// message.
type DeliveryError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string { return e.Message }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Deliverer hands a validated, sanitized submission to its destination:
// an upstream endpoint or an SMTP notification.
type Deliverer interface {
	Deliver(ctx context.Context, def *forms.Definition, sub forms.Submission) (string, error)
}

// Pipeline gates submissions for a single form definition.
type Pipeline struct {
	def       *forms.Definition
	schema    *validate.Schema
	store     storage.Store
	deliverer Deliverer
	log       *logger.Logger
	conf      ratelimit.Config
}

// New builds a pipeline for def. The rate-limit config falls back from
// the definition's own settings to conf to the package defaults.
func New(def *forms.Definition, store storage.Store, deliverer Deliverer, log *logger.Logger, conf ratelimit.Config) *Pipeline {
	if def.RateLimit.MaxAttempts > 0 {
		conf.MaxAttempts = def.RateLimit.MaxAttempts
	}
	if def.RateLimit.Window > 0 {
		conf.Window = def.RateLimit.Window
	}
	if def.RateLimit.BlockDuration > 0 {
		conf.BlockDuration = def.RateLimit.BlockDuration
	}
	return &Pipeline{
		def:       def,
		schema:    validate.NewSchema(sanitize.New(), def),
		store:     store,
		deliverer: deliverer,
		log:       log,
		conf:      conf,
	}
}

// Limiter returns the persisted rate limiter gating clientKey on this
// form.
func (p *Pipeline) Limiter(clientKey string) *ratelimit.Limiter {
	return ratelimit.New(p.store, p.def.ID+"_"+clientKey, p.conf)
}

// Submit runs the pipeline. On success it returns the sanitized
// submission and the deliverer's response.
func (p *Pipeline) Submit(ctx context.Context, clientKey string, sub forms.Submission) (forms.Submission, string, error) {
	if sub.Website != "" {
		p.log.Warn("submission failed honeypot check", slog.String("form", p.def.ID))
		return sub, "", &BotError{}
	}

	limiter := p.Limiter(clientKey)
	if result := limiter.Check(); !result.Allowed {
		p.log.Warn("submission rate limited", slog.String("form", p.def.ID))
		return sub, "", &RateLimitError{Message: result.Message}
	}
	limiter.TrackAttempt()

	result := p.schema.Validate(sub)
	if !result.Success {
		return sub, "", &ValidationError{Errors: result.Errors}
	}

	response, err := p.deliverer.Deliver(ctx, p.def, result.Data)
	if err != nil {
		if deliveryErr, ok := err.(*DeliveryError); ok {
			return result.Data, "", deliveryErr
		}
		p.log.Error("delivery failed", logger.Err(err), slog.String("form", p.def.ID))
		return result.Data, "", &DeliveryError{Message: GenericFailureMessage, Err: err}
	}

	return result.Data, response, nil
}
