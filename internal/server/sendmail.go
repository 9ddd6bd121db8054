// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/logger"
	"github.com/softdab/leadgate/internal/submit"
)

var userAgent = fmt.Sprintf("leadgate/%s // https://github.com/softdab/leadgate", Version)

// MailDeliverer sends the lead notification mail for definitions without
// an upstream endpoint.
type MailDeliverer struct {
	log *logger.Logger
}

var _ submit.Deliverer = (*MailDeliverer)(nil)

func NewMailDeliverer(log *logger.Logger) *MailDeliverer {
	return &MailDeliverer{log: log}
}

// Deliver sends sub as a plain-text notification to the definition's
// recipients and returns the SMTP server response.
func (d *MailDeliverer) Deliver(ctx context.Context, def *forms.Definition, sub forms.Submission) (string, error) {
	if def.Server.DryRun {
		d.log.Info("dry-run mode enabled, skipping actual mail delivery")
		return "dry-run succeeded", nil
	}

	client, err := mail.NewClient(def.Server.Host, mail.WithPort(def.Server.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover), mail.WithUsername(def.Server.Username),
		mail.WithPassword(def.Server.Password), mail.WithTLSPolicy(mail.DefaultTLSPolicy),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create mail client: %w", err)
	}
	if !def.Server.ForceTLS {
		client.SetTLSPolicy(mail.TLSOpportunistic)
	}

	message := mail.NewMsg()
	if err = message.From(def.Sender); err != nil {
		return "", fmt.Errorf("failed to set sender address: %w", err)
	}
	if err = message.To(def.Recipients...); err != nil {
		return "", fmt.Errorf("failed to set recipient address: %w", err)
	}
	if err = message.ReplyTo(sub.Email); err != nil {
		return "", fmt.Errorf("failed to set reply-to address: %w", err)
	}
	subject := def.Subject
	if subject == "" {
		subject = fmt.Sprintf("New Contact Form: %s from %s", sub.Name, sub.Company)
	}
	message.Subject(subject)
	message.SetUserAgent(userAgent)
	message.SetBodyString(mail.TypeTextPlain, notificationBody(sub))

	if err = client.DialAndSendWithContext(ctx, message); err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return message.ServerResponse(), nil
}

func notificationBody(sub forms.Submission) string {
	body := strings.Builder{}
	body.WriteString("New contact form submission:\n\n")
	fields := []struct {
		label string
		value string
	}{
		{"Name", sub.Name},
		{"Email", sub.Email},
		{"Company", sub.Company},
		{"Role", sub.Role},
		{"Service", sub.Service},
		{"Timeline", sub.Timeline},
		{"Budget", sub.Budget},
		{"Message", sub.Message},
	}
	for _, field := range fields {
		body.WriteString(fmt.Sprintf("%s: %s\n", field.label, field.value))
	}
	body.WriteString(fmt.Sprintf("\nMarketing consent: %t\n", sub.MarketingConsent))
	if sub.Page != "" {
		body.WriteString(fmt.Sprintf("Page: %s\n", sub.Page))
	}
	if sub.Referrer != "" {
		body.WriteString(fmt.Sprintf("Referrer: %s\n", sub.Referrer))
	}
	if sub.UserAgent != "" {
		body.WriteString(fmt.Sprintf("User Agent: %s\n", sub.UserAgent))
	}
	if !sub.Timestamp.IsZero() {
		body.WriteString(fmt.Sprintf("Timestamp: %s\n", sub.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")))
	}

	return body.String()
}
