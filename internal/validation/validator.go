// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package validation provides struct validation using go-playground/validator v10.
// It exposes a thread-safe singleton validator with custom validators for
// Brazilian legal identifiers.
//
// Custom validators:
//   - cnj: CNJ-standard case numbers (NNNNNNN-DD.AAAA.J.TR.OOOO), with the
//     bare 20-digit form also accepted since vendors are inconsistent about
//     punctuation.
//
// Example usage:
//
//	type RegisterRequest struct {
//	    CaseNumber string `validate:"omitempty,cnj"`
//	    Term       string `validate:"omitempty,min=2,max=200"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondError(w, http.StatusBadRequest, models.ErrCodeValidation, verr.Error(), verr.Fields())
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// cnjPattern matches the CNJ unified numbering format:
// sequential-check.year.segment.court.origin
var cnjPattern = regexp.MustCompile(`^\d{7}-\d{2}\.\d{4}\.\d\.\d{2}\.\d{4}$`)

// cnjBarePattern matches the same number with all punctuation stripped.
var cnjBarePattern = regexp.MustCompile(`^\d{20}$`)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Error returns a human-readable error message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError is the collection of failures for one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface with a combined message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		messages = append(messages, ve.errors[i].message)
	}
	return strings.Join(messages, "; ")
}

// Fields returns a details map suitable for embedding in an error response.
func (ve *RequestValidationError) Fields() map[string]interface{} {
	if len(ve.errors) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(ve.errors))
	for i := range ve.errors {
		fields[ve.errors[i].field] = ve.errors[i].message
	}
	return fields
}

// GetValidator returns the singleton validator instance. Thread-safe.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Error details reference fields by their JSON names, matching what
		// the caller actually sent.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		// Built-in validators cover ip, oneof, min/max and friends; only
		// the CNJ case number needs a custom rule.
		_ = validate.RegisterValidation("cnj", func(fl validator.FieldLevel) bool {
			return IsCNJCaseNumber(fl.Field().String())
		})
	})
	return validate
}

// IsCNJCaseNumber reports whether value is a CNJ-standard case number, in
// either the punctuated or the bare 20-digit form.
func IsCNJCaseNumber(value string) bool {
	value = strings.TrimSpace(value)
	return cnjPattern.MatchString(value) || cnjBarePattern.MatchString(value)
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil when validation passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps tags without a parameter to message templates.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"ip":       "%s must be a valid IP address",
	"cidr":     "%s must be a valid CIDR block",
	"cnj":      "%s must be a CNJ-standard case number",
	"uuid":     "%s must be a valid UUID",
	"url":      "%s must be a valid URL",
}

// errorMessageWithParam maps tags whose parameter belongs in the message.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind().String() == "string"

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
