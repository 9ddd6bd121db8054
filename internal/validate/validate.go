// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

// Package validate schema-checks a form submission. Every string field is
// passed through the sanitizer before the checks run, and violations are
// collected for all fields at once so the UI can highlight everything in
// a single pass.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/softdab/leadgate/internal/forms"
	"github.com/softdab/leadgate/internal/sanitize"
)

// consumerDomains are free consumer-mail providers rejected by the
// business-email-only policy. This filters low-quality leads at the edge.
var consumerDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
}

// FieldError is a single violation, addressed by the payload's JSON field
// name so the UI can attach it to the right input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of a validation run. Data carries the sanitized
// payload and is only meaningful when Success is true.
type Result struct {
	Success bool             `json:"success"`
	Data    forms.Submission `json:"data,omitempty"`
	Errors  []FieldError     `json:"errors,omitempty"`
}

// Schema validates submissions against one form definition, which supplies
// the allowed option sets and the minimum message length for the variant.
type Schema struct {
	validate  *validator.Validate
	sanitizer *sanitize.Sanitizer
	def       *forms.Definition
}

func NewSchema(sanitizer *sanitize.Sanitizer, def *forms.Definition) *Schema {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("business_email", businessEmail)

	return &Schema{validate: v, sanitizer: sanitizer, def: def}
}

// Validate sanitizes sub and checks it against the schema. It never
// fails fast: the returned errors cover every violated field.
func (s *Schema) Validate(sub forms.Submission) Result {
	// The honeypot is judged on the raw value. Sanitizing first could
	// strip a bot's script payload down to an empty string and wave the
	// submission through.
	var errs []FieldError
	if sub.Website != "" {
		errs = append(errs, FieldError{Field: "website", Message: "Should be empty"})
	}

	sub = s.sanitizeSubmission(sub)

	if err := s.validate.Struct(sub); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				if fe.Field() == "website" {
					continue // already reported on the raw value
				}
				errs = append(errs, FieldError{Field: fe.Field(), Message: s.messageFor(fe.Field(), fe.Tag())})
			}
		} else {
			errs = append(errs, FieldError{Field: "", Message: "request could not be validated"})
		}
	}

	errs = append(errs, s.checkMessageLength(sub)...)
	errs = append(errs, s.checkOptions(sub)...)

	if len(errs) > 0 {
		return Result{Success: false, Errors: errs}
	}
	return Result{Success: true, Data: sub}
}

func (s *Schema) sanitizeSubmission(sub forms.Submission) forms.Submission {
	sub.Name = s.sanitizer.String(sub.Name)
	sub.Email = s.sanitizer.String(sub.Email)
	sub.Company = s.sanitizer.String(sub.Company)
	sub.Role = s.sanitizer.String(sub.Role)
	sub.Service = s.sanitizer.String(sub.Service)
	sub.Timeline = s.sanitizer.String(sub.Timeline)
	sub.Budget = s.sanitizer.String(sub.Budget)
	sub.Message = s.sanitizer.String(sub.Message)
	sub.Page = s.sanitizer.String(sub.Page)
	sub.Referrer = s.sanitizer.String(sub.Referrer)
	sub.UserAgent = s.sanitizer.String(sub.UserAgent)
	return sub
}

func (s *Schema) checkMessageLength(sub forms.Submission) []FieldError {
	minLength := s.def.MinMessageLength
	if minLength <= 0 {
		minLength = 20
	}
	if sub.Message != "" && len(sub.Message) < minLength {
		return []FieldError{{
			Field:   "message",
			Message: fmt.Sprintf("Message must be at least %d characters", minLength),
		}}
	}
	return nil
}

func (s *Schema) checkOptions(sub forms.Submission) []FieldError {
	var errs []FieldError
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"service", sub.Service, s.def.Options.Services},
		{"timeline", sub.Timeline, s.def.Options.Timelines},
		{"budget", sub.Budget, s.def.Options.Budgets},
	}
	for _, check := range checks {
		if check.value == "" || len(check.allowed) == 0 {
			continue
		}
		if !containsFold(check.allowed, check.value) {
			errs = append(errs, FieldError{
				Field:   check.field,
				Message: fmt.Sprintf("Please select a valid %s", check.field),
			})
		}
	}
	return errs
}

func (s *Schema) messageFor(field, tag string) string {
	switch field {
	case "name":
		switch tag {
		case "required":
			return "Name is required"
		case "min":
			return "Name must be at least 2 characters"
		case "max":
			return "Name must be less than 100 characters"
		}
	case "email":
		switch tag {
		case "required":
			return "Email is required"
		case "business_email":
			return "Please use your business email"
		default:
			return "Invalid email format"
		}
	case "company":
		switch tag {
		case "required":
			return "Company name is required"
		case "min":
			return "Company name must be at least 2 characters"
		case "max":
			return "Company name must be less than 100 characters"
		}
	case "role":
		switch tag {
		case "required":
			return "Role is required"
		case "min":
			return "Role must be at least 2 characters"
		case "max":
			return "Role must be less than 100 characters"
		}
	case "service":
		return "Please select a service"
	case "timeline":
		return "Please select a timeline"
	case "budget":
		return "Please select a budget"
	case "message":
		if tag == "max" {
			return "Message must be less than 5000 characters"
		}
		return "Message is required"
	case "gdprConsent":
		return "GDPR consent is required"
	}
	return fmt.Sprintf("%s is invalid", field)
}

func businessEmail(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	at := strings.LastIndex(value, "@")
	if at < 0 || at == len(value)-1 {
		return false
	}
	_, denied := consumerDomains[strings.ToLower(value[at+1:])]
	return !denied
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}
	return false
}
