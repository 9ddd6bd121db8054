// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package forms holds the per-form configuration (allowed option sets,
// validation knobs, delivery targets) and the submission payload type.
// Each form variant lives in its own config file under the configured
// forms path, so the contact and staffing forms can differ in option sets
// and minimum message length without code changes.
package forms

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kkyr/fig"
)

var ErrFormNotFound = errors.New("form not found")

// Definition is the configuration struct for a form variant.
type Definition struct {
	ID      string   `fig:"id" validate:"required"`
	Domains []string `fig:"domains" validate:"required"`

	// Mail delivery. Optional when an upstream endpoint is configured.
	Subject    string   `fig:"subject"`
	Sender     string   `fig:"sender"`
	Recipients []string `fig:"recipients"`
	Server     struct {
		Host     string `fig:"host"`
		Port     int    `fig:"port" default:"587"`
		Username string
		Password string
		ForceTLS bool `fig:"force_tls"`
		DryRun   bool `fig:"dry_run"`
	} `fig:"server"`

	// Upstream forwards the sanitized submission to an external endpoint
	// instead of (or in addition to) mail delivery.
	Upstream struct {
		URL string `fig:"url"`
	} `fig:"upstream"`

	Options struct {
		Services  []string `fig:"services"`
		Timelines []string `fig:"timelines"`
		Budgets   []string `fig:"budgets"`
	} `fig:"options"`

	MinMessageLength int    `fig:"min_message_length" default:"20"`
	Honeypot         string `fig:"honeypot" default:"website"`

	RateLimit struct {
		MaxAttempts   int           `fig:"max_attempts"`
		Window        time.Duration `fig:"window"`
		BlockDuration time.Duration `fig:"block_duration"`
	} `fig:"rate_limit"`
}

// Submission is the user-entered payload plus request-context metadata. It
// is constructed at submit time, sanitized and validated, and discarded
// after delivery; it is never persisted.
type Submission struct {
	Name             string `json:"name" validate:"required,min=2,max=100"`
	Email            string `json:"email" validate:"required,email,business_email"`
	Company          string `json:"company" validate:"required,min=2,max=100"`
	Role             string `json:"role" validate:"required,min=2,max=100"`
	Service          string `json:"service" validate:"required"`
	Timeline         string `json:"timeline" validate:"required"`
	Budget           string `json:"budget" validate:"required"`
	Message          string `json:"message" validate:"required,max=5000"`
	GDPRConsent      bool   `json:"gdprConsent" validate:"required"`
	MarketingConsent bool   `json:"marketingConsent"`

	// Website is the honeypot field. Humans never see it; bots fill it.
	Website string `json:"website" validate:"isdefault"`

	Page      string    `json:"page,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Load reads the definition for formID from path, trying the known config
// file extensions in order.
func Load(path, formID string) (*Definition, error) {
	def := new(Definition)

	root, err := os.OpenRoot(path)
	if err != nil {
		return def, fmt.Errorf("failed to open root of forms path: %w", err)
	}

	var file string
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		if _, err = root.Stat(formID + "." + ext); err == nil {
			file = formID + "." + ext
			break
		}
	}
	if file == "" {
		return def, ErrFormNotFound
	}

	if err = fig.Load(def, fig.File(file), fig.Dirs(root.Name())); err != nil {
		return def, fmt.Errorf("failed to parse form definition: %w", err)
	}

	return def, nil
}
