package guardrails

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// PIIType names a category of personal data.
type PIIType string

const (
	PIIEmail      PIIType = "email"
	PIIPhone      PIIType = "phone"
	PIICreditCard PIIType = "credit_card"
	PIISSN        PIIType = "ssn"
)

// PIIAction selects what PIIDetector does with matches.
type PIIAction string

const (
	PIIActionReject PIIAction = "reject"
	PIIActionMask   PIIAction = "mask"
	PIIActionWarn   PIIAction = "warn"
)

var defaultPIIPatterns = map[PIIType]*regexp.Regexp{
	PIIEmail:      regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	PIIPhone:      regexp.MustCompile(`\+?\d{1,3}[ .-]?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`),
	PIICreditCard: regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
	PIISSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// PIIMatch is one detected span.
type PIIMatch struct {
	Type     PIIType `json:"type"`
	Masked   string  `json:"masked"`
	Position int     `json:"position"`
}

// PIIDetector finds personal data by pattern.
type PIIDetector struct {
	patterns map[PIIType]*regexp.Regexp
	action   PIIAction
}

// NewPIIDetector detects the given types, or every built-in type when none
// are named.
func NewPIIDetector(action PIIAction, types ...PIIType) *PIIDetector {
	if action == "" {
		action = PIIActionReject
	}
	if len(types) == 0 {
		types = []PIIType{PIIEmail, PIIPhone, PIICreditCard, PIISSN}
	}
	d := &PIIDetector{patterns: make(map[PIIType]*regexp.Regexp), action: action}
	for _, t := range types {
		if re, ok := defaultPIIPatterns[t]; ok {
			d.patterns[t] = re
		}
	}
	return d
}

// WithPattern adds or replaces the pattern for t.
func (d *PIIDetector) WithPattern(t PIIType, re *regexp.Regexp) *PIIDetector {
	d.patterns[t] = re
	return d
}

func (d *PIIDetector) Name() string  { return "pii" }
func (d *PIIDetector) Priority() int { return 100 }

func (d *PIIDetector) types() []PIIType {
	out := make([]PIIType, 0, len(d.patterns))
	for t := range d.patterns {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Detect returns matches ordered by type, then position. Credit card
// candidates must pass the Luhn check.
func (d *PIIDetector) Detect(content string) []PIIMatch {
	var matches []PIIMatch
	for _, t := range d.types() {
		for _, loc := range d.patterns[t].FindAllStringIndex(content, -1) {
			value := content[loc[0]:loc[1]]
			if t == PIICreditCard && !luhn(value) {
				continue
			}
			matches = append(matches, PIIMatch{Type: t, Masked: mask(value), Position: loc[0]})
		}
	}
	return matches
}

// Mask replaces every match in content.
func (d *PIIDetector) Mask(content string) string {
	for _, t := range d.types() {
		content = d.patterns[t].ReplaceAllStringFunc(content, func(v string) string {
			if t == PIICreditCard && !luhn(v) {
				return v
			}
			return mask(v)
		})
	}
	return content
}

// Validate implements Validator.
func (d *PIIDetector) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	matches := d.Detect(content)
	if len(matches) == 0 {
		return result, nil
	}
	counts := make(map[PIIType]int)
	for _, m := range matches {
		counts[m.Type]++
	}
	result.Metadata["pii_types"] = counts

	for _, t := range d.types() {
		n := counts[t]
		if n == 0 {
			continue
		}
		msg := fmt.Sprintf("%d %s value(s) detected", n, t)
		if d.action == PIIActionReject {
			result.AddError(ValidationError{Code: ErrCodePIIDetected, Message: msg, Severity: SeverityHigh, Field: string(t)})
		} else {
			result.AddWarning(msg)
		}
	}
	if d.action == PIIActionMask {
		result.Metadata["masked_content"] = d.Mask(content)
	}
	return result, nil
}

// mask keeps the last four alphanumerics, or the domain of an email.
func mask(v string) string {
	if at := strings.IndexByte(v, '@'); at > 0 {
		return v[:1] + "***" + v[at:]
	}
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func luhn(v string) bool {
	var sum, n int
	double := false
	for i := len(v) - 1; i >= 0; i-- {
		c := v[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		n++
	}
	return n >= 13 && sum%10 == 0
}
