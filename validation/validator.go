package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/taskgraph/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
	seen   map[string]map[string]bool
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
		seen:   make(map[string]map[string]bool),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{
		"fields": v.errors,
	}
	return appErr
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Unique checks that value has not been seen before within group.
// Empty values are ignored so Required can report them instead.
func (v *Validator) Unique(group, field, value string) *Validator {
	if value == "" {
		return v
	}
	set, ok := v.seen[group]
	if !ok {
		set = make(map[string]bool)
		v.seen[group] = set
	}
	if set[value] {
		v.AddError(field, fmt.Sprintf("duplicate value %q", value))
		return v
	}
	set[value] = true
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}
