package structured

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weather struct {
	City    string  `json:"city" jsonschema:"required,description=City name"`
	Celsius float64 `json:"celsius" jsonschema:"required"`
	Note    string  `json:"note,omitempty"`
}

func TestOutput_ParseStruct(t *testing.T) {
	out, err := NewOutput[weather]()
	require.NoError(t, err)
	assert.Equal(t, "final_output", out.Name())
	assert.True(t, out.Strict())

	v, err := out.ParseTyped(`{"city":"Oslo","celsius":-3.5}`)
	require.NoError(t, err)
	assert.Equal(t, weather{City: "Oslo", Celsius: -3.5}, v)

	anyV, err := out.Parse("```json\n{\"city\":\"Rome\",\"celsius\":20}\n```")
	require.NoError(t, err)
	assert.Equal(t, weather{City: "Rome", Celsius: 20}, anyV)
}

func TestOutput_ParseRejectsMismatch(t *testing.T) {
	out := MustOutput[weather]()

	tests := []struct {
		name string
		text string
	}{
		{"missing required", `{"city":"Oslo"}`},
		{"wrong type", `{"city":"Oslo","celsius":"cold"}`},
		{"not json", `it is cold in Oslo`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := out.Parse(tt.text)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestOutput_WrapsScalars(t *testing.T) {
	out := MustOutput[[]int](WithName("numbers"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.JSONSchema(), &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Contains(t, doc["properties"], "response")

	v, err := out.ParseTyped(`{"response":[1,2,3]}`)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)

	_, err = out.Parse(`[1,2,3]`)
	assert.Error(t, err)
}

func TestGenerate_DropsMetaKeys(t *testing.T) {
	raw, err := Generate[weather]()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NotContains(t, doc, "$schema")
	assert.NotContains(t, doc, "$id")
	assert.Equal(t, []any{"city", "celsius"}, doc["required"])
}

func TestSchema_Validate(t *testing.T) {
	s, err := Compile(json.RawMessage(`{
		"type": "object",
		"properties": {"n": {"type": "integer", "minimum": 1}},
		"required": ["n"]
	}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"n":{"type":"integer","minimum":1}},"required":["n"]}`, string(s.Raw()))

	assert.NoError(t, s.Validate([]byte(`{"n":3}`)))
	assert.Error(t, s.Validate([]byte(`{"n":0}`)))
	assert.Error(t, s.Validate([]byte(`{`)))

	_, err = Compile(json.RawMessage(`{"type": 12}`))
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1} "))
}
