package guardrails

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// LengthAction selects what LengthValidator does with oversized content.
type LengthAction string

const (
	LengthActionReject   LengthAction = "reject"
	LengthActionTruncate LengthAction = "truncate"
)

// LengthValidator bounds content length in runes.
type LengthValidator struct {
	maxLength int
	action    LengthAction
	priority  int
}

// NewLengthValidator returns a validator rejecting content over maxLength runes.
func NewLengthValidator(maxLength int, action LengthAction) *LengthValidator {
	if action == "" {
		action = LengthActionReject
	}
	return &LengthValidator{maxLength: maxLength, action: action, priority: 10}
}

func (v *LengthValidator) Name() string  { return "length" }
func (v *LengthValidator) Priority() int { return v.priority }

// Validate implements Validator. In truncate mode the result carries the
// shortened text under "truncated_content" and stays valid.
func (v *LengthValidator) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	n := utf8.RuneCountInString(content)
	if n <= v.maxLength {
		return result, nil
	}
	result.Metadata["length"] = n
	result.Metadata["max_length"] = v.maxLength

	switch v.action {
	case LengthActionTruncate:
		result.AddWarning(fmt.Sprintf("content truncated from %d to %d characters", n, v.maxLength))
		result.Metadata["truncated_content"] = v.Truncate(content)
	default:
		result.AddError(ValidationError{
			Code:     ErrCodeMaxLengthExceeded,
			Message:  fmt.Sprintf("content length %d exceeds limit %d", n, v.maxLength),
			Severity: SeverityHigh,
		})
	}
	return result, nil
}

// Truncate cuts content to the configured length.
func (v *LengthValidator) Truncate(content string) string {
	if utf8.RuneCountInString(content) <= v.maxLength {
		return content
	}
	return string([]rune(content)[:v.maxLength])
}

// KeywordValidator blocks content containing any of a set of keywords.
type KeywordValidator struct {
	keywords      []string
	severity      string
	caseSensitive bool
	// Warn downgrades matches to warnings.
	Warn bool
}

// NewKeywordValidator matches keywords case-insensitively.
func NewKeywordValidator(keywords ...string) *KeywordValidator {
	return &KeywordValidator{keywords: append([]string(nil), keywords...), severity: SeverityMedium}
}

// WithSeverity sets the severity reported for matches.
func (v *KeywordValidator) WithSeverity(severity string) *KeywordValidator {
	v.severity = severity
	return v
}

// CaseSensitive switches to exact-case matching.
func (v *KeywordValidator) CaseSensitive() *KeywordValidator {
	v.caseSensitive = true
	return v
}

func (v *KeywordValidator) Name() string  { return "keyword" }
func (v *KeywordValidator) Priority() int { return 20 }

// Detect returns the keywords found in content, in configuration order.
func (v *KeywordValidator) Detect(content string) []string {
	haystack := content
	if !v.caseSensitive {
		haystack = strings.ToLower(content)
	}
	var found []string
	for _, kw := range v.keywords {
		needle := kw
		if !v.caseSensitive {
			needle = strings.ToLower(kw)
		}
		if needle != "" && strings.Contains(haystack, needle) {
			found = append(found, kw)
		}
	}
	return found
}

// Validate implements Validator.
func (v *KeywordValidator) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	found := v.Detect(content)
	if len(found) == 0 {
		return result, nil
	}
	result.Metadata["keywords"] = found
	msg := "blocked keyword detected: " + strings.Join(found, ", ")
	if v.Warn {
		result.AddWarning(msg)
		return result, nil
	}
	result.AddError(ValidationError{Code: ErrCodeBlockedKeyword, Message: msg, Severity: v.severity})
	return result, nil
}
