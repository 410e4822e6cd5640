package structured

import (
	"encoding/json"
	"fmt"
	"reflect"
)

const wrapperKey = "response"

// Output is a typed output contract. It satisfies agent.OutputSchema.
type Output[T any] struct {
	name    string
	schema  *Schema
	strict  bool
	wrapped bool
}

// OutputOption configures an Output.
type OutputOption func(*outputOptions)

type outputOptions struct {
	name   string
	strict bool
}

// WithName sets the schema name sent to the provider.
func WithName(name string) OutputOption {
	return func(o *outputOptions) { o.name = name }
}

// WithStrict asks the provider for strict schema adherence.
func WithStrict(strict bool) OutputOption {
	return func(o *outputOptions) { o.strict = strict }
}

// NewOutput builds the output contract for T.
func NewOutput[T any](opts ...OutputOption) (*Output[T], error) {
	t := reflect.TypeFor[T]()
	o := outputOptions{name: "final_output", strict: true}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := generateFor(t)
	if err != nil {
		return nil, err
	}
	wrapped := !isObjectType(t)
	if wrapped {
		raw, err = json.Marshal(map[string]any{
			"type":                 "object",
			"properties":           map[string]json.RawMessage{wrapperKey: raw},
			"required":             []string{wrapperKey},
			"additionalProperties": false,
		})
		if err != nil {
			return nil, err
		}
	}
	schema, err := Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("output schema for %s: %w", t, err)
	}
	return &Output[T]{name: o.name, schema: schema, strict: o.strict, wrapped: wrapped}, nil
}

// MustOutput is like NewOutput but panics on error.
func MustOutput[T any](opts ...OutputOption) *Output[T] {
	o, err := NewOutput[T](opts...)
	if err != nil {
		panic(err)
	}
	return o
}

// Name returns the schema name.
func (o *Output[T]) Name() string { return o.name }

// JSONSchema returns the schema document sent to the provider.
func (o *Output[T]) JSONSchema() json.RawMessage { return o.schema.Raw() }

// Strict reports whether strict adherence is requested.
func (o *Output[T]) Strict() bool { return o.strict }

// Parse validates text against the schema and decodes it into T.
func (o *Output[T]) Parse(text string) (any, error) {
	return o.ParseTyped(text)
}

// ParseTyped is the typed form of Parse.
func (o *Output[T]) ParseTyped(text string) (T, error) {
	var zero T
	data := []byte(StripCodeFence(text))
	if err := o.schema.Validate(data); err != nil {
		return zero, err
	}
	if o.wrapped {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(data, &env); err != nil {
			return zero, &ValidationError{Cause: err}
		}
		data = env[wrapperKey]
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, &ValidationError{Cause: err}
	}
	return v, nil
}
