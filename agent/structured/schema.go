package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled JSON schema together with its source document.
type Schema struct {
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// ValidationError reports a payload that does not match its schema.
type ValidationError struct {
	Cause error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// IsValidationError reports whether err stems from a schema mismatch.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Compile compiles raw into a Schema.
func Compile(raw json.RawMessage) (*Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("compact schema: %w", err)
	}
	return &Schema{raw: buf.Bytes(), compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(raw json.RawMessage) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw returns the compact schema document.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Validate checks data against the schema. Malformed JSON and schema
// mismatches are both reported as *ValidationError.
func (s *Schema) Validate(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Cause: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := s.compiled.Validate(inst); err != nil {
		return &ValidationError{Cause: err}
	}
	return nil
}

// StripCodeFence removes a surrounding markdown code fence, if present.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
