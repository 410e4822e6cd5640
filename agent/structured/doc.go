/*
Package structured generates and validates JSON Schemas for structured agent
output and tool arguments.

Schemas are reflected from Go types with invopop/jsonschema and compiled with
santhosh-tekuri/jsonschema.

# Main types

  - Schema: a compiled JSON Schema. Validate checks raw JSON against it.
  - Output[T]: an agent output contract that builds the schema, validates
    model output and decodes it into T.
  - Generate[T]: builds a parameter schema from a type, used by function
    tools and typed handoff input.

Non-object types such as string or []int are wrapped as {"response": ...} and
unwrapped again on parse.
*/
package structured
