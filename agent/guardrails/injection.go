package guardrails

import (
	"context"
	"regexp"
)

type injectionPattern struct {
	re          *regexp.Regexp
	description string
	severity    string
}

var defaultInjectionPatterns = []injectionPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`), "ignore previous instructions", SeverityCritical},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|the\s+above)`), "disregard instructions", SeverityCritical},
	{regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you\s+)?(know|were\s+told)`), "forget context", SeverityCritical},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s+`), "role override", SeverityHigh},
	{regexp.MustCompile(`(?i)(reveal|print|show)\s+(your|the)\s+(system\s+prompt|instructions)`), "prompt extraction", SeverityHigh},
	{regexp.MustCompile(`(?i)\b(DAN|developer)\s+mode\b`), "jailbreak mode", SeverityHigh},
	{regexp.MustCompile(`(?i)<\s*/?\s*(system|assistant)\s*>`), "role delimiter injection", SeverityMedium},
}

// InjectionDetector flags prompt-injection attempts. Critical matches set
// the tripwire.
type InjectionDetector struct {
	patterns []injectionPattern
}

// NewInjectionDetector uses the built-in patterns plus any custom ones.
// Custom patterns are matched case-insensitively; invalid ones are an error.
func NewInjectionDetector(custom ...string) (*InjectionDetector, error) {
	d := &InjectionDetector{patterns: append([]injectionPattern(nil), defaultInjectionPatterns...)}
	for _, p := range custom {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, &ValidatorError{Validator: "injection", Cause: err}
		}
		d.patterns = append(d.patterns, injectionPattern{re, "custom pattern", SeverityHigh})
	}
	return d, nil
}

func (d *InjectionDetector) Name() string  { return "injection" }
func (d *InjectionDetector) Priority() int { return 50 }

// Validate implements Validator.
func (d *InjectionDetector) Validate(_ context.Context, content string) (*ValidationResult, error) {
	result := NewValidationResult()
	var hits []string
	for _, p := range d.patterns {
		if !p.re.MatchString(content) {
			continue
		}
		hits = append(hits, p.description)
		result.AddError(ValidationError{Code: ErrCodeInjectionDetected, Message: p.description, Severity: p.severity})
		if p.severity == SeverityCritical {
			result.Tripwire = true
		}
	}
	if len(hits) > 0 {
		result.Metadata["patterns"] = hits
	}
	return result, nil
}
