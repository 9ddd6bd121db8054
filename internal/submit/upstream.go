// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/softdab/leadgate/internal/csrf"
	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/httpclient"
	"github.com/softdab/leadgate/internal/logger"
)

// UpstreamMessage is returned when the upstream accepted the submission
// but did not include its own confirmation message.
const UpstreamMessage = "Thank you! We will get back to you shortly."

// upstreamResponse covers both success and error envelopes of the
// upstream endpoint.
type upstreamResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// UpstreamDeliverer posts submissions to the definition's upstream URL.
// Every request carries a freshly issued one-time token in both the
// X-CSRF-Token header and the csrf_token cookie.
type UpstreamDeliverer struct {
	client *httpclient.Client
	tokens *csrf.Manager
	log    *logger.Logger
}

// NewUpstreamDeliverer returns an UpstreamDeliverer using the given
// HTTP client and token manager.
func NewUpstreamDeliverer(client *httpclient.Client, tokens *csrf.Manager, log *logger.Logger) *UpstreamDeliverer {
	return &UpstreamDeliverer{client: client, tokens: tokens, log: log}
}

// Deliver posts sub as JSON to def's upstream URL and returns the
// upstream's confirmation message.
func (d *UpstreamDeliverer) Deliver(ctx context.Context, def *forms.Definition, sub forms.Submission) (string, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submission: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, def.Upstream.URL,
		bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create upstream request: %w", err)
	}
	request.Header.Set("User-Agent", httpclient.UserAgent)
	request.Header.Set("Content-Type", "application/json")
	d.tokens.AttachToken(request)

	response, err := d.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer func() {
		if closeErr := response.Body.Close(); closeErr != nil {
			d.log.Error("failed to close upstream response body", logger.Err(closeErr))
		}
	}()

	var parsed upstreamResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&parsed); decodeErr != nil &&
		response.StatusCode >= 200 && response.StatusCode < 300 {
		return UpstreamMessage, nil
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := parsed.Detail
		if message == "" {
			message = parsed.Message
		}
		if message == "" {
			message = GenericFailureMessage
		}
		return "", &DeliveryError{Message: message, StatusCode: response.StatusCode}
	}
	if parsed.Message == "" {
		return UpstreamMessage, nil
	}
	return parsed.Message, nil
}
