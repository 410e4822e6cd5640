package guardrails

import (
	"context"
	"fmt"
)

// Validator checks a piece of text.
type Validator interface {
	Name() string
	// Priority orders validators in a chain; lower runs first.
	Priority() int
	Validate(ctx context.Context, content string) (*ValidationResult, error)
}

// ValidationResult is the outcome of one or more validators.
type ValidationResult struct {
	Valid bool `json:"valid"`
	// Tripwire halts the run even when Valid is true.
	Tripwire bool              `json:"tripwire,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// NewValidationResult returns a passing result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, Metadata: make(map[string]any)}
}

// AddError records err and marks the result invalid.
func (r *ValidationResult) AddError(err ValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

// AddWarning records a non-blocking finding.
func (r *ValidationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// Merge folds other into r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Valid = r.Valid && other.Valid
	r.Tripwire = r.Tripwire || other.Tripwire
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if len(other.Metadata) > 0 && r.Metadata == nil {
		r.Metadata = make(map[string]any, len(other.Metadata))
	}
	for k, v := range other.Metadata {
		r.Metadata[k] = v
	}
}

// Triggered reports whether the result should trip a guardrail.
func (r *ValidationResult) Triggered() bool {
	return r.Tripwire || !r.Valid
}

// ValidationError is one blocking finding.
type ValidationError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
}

// Severities, most severe first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Error codes.
const (
	ErrCodeInjectionDetected = "INJECTION_DETECTED"
	ErrCodePIIDetected       = "PII_DETECTED"
	ErrCodeMaxLengthExceeded = "MAX_LENGTH_EXCEEDED"
	ErrCodeBlockedKeyword    = "BLOCKED_KEYWORD"
	ErrCodeValidatorFailed   = "VALIDATOR_FAILED"
)

func severityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ValidatorError wraps a validator that failed to run.
type ValidatorError struct {
	Validator string
	Cause     error
}

func (e *ValidatorError) Error() string {
	return fmt.Sprintf("validator %s: %v", e.Validator, e.Cause)
}

func (e *ValidatorError) Unwrap() error { return e.Cause }
