// Package facts implements the gated fact extractor of spec §4.8: a
// closed set of document types eligible for extraction, strict-JSON LLM
// extraction per analytical unit, JSON-schema validation of the result,
// dense-embedding-based cross-document dedup, and append-only edit
// history. Schema validation follows the teacher pack's structured-output
// idiom (compile-once, validate-per-call via santhosh-tekuri/jsonschema).
package facts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// factSchemaJSON is the shape an extracted fact candidate must satisfy
// before it is persisted (spec §3 Fact, minus ids/timestamps/review
// state which the pipeline assigns itself).
const factSchemaJSON = `{
  "type": "object",
  "required": ["content", "category", "confidence"],
  "properties": {
    "content": {"type": "string", "minLength": 1},
    "category": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "entities": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "dateReferences": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["raw"],
        "properties": {
          "raw": {"type": "string"},
          "date": {"type": "string"}
        }
      }
    },
    "sourceSnippet": {"type": "string"}
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fact.json", bytes.NewReader([]byte(factSchemaJSON))); err != nil {
		panic(fmt.Sprintf("facts: compiling schema: %v", err))
	}
	schema, err := compiler.Compile("fact.json")
	if err != nil {
		panic(fmt.Sprintf("facts: compiling schema: %v", err))
	}
	return schema
}

// candidate is the wire shape an LLM extraction call is asked to emit.
type candidate struct {
	Content        string              `json:"content"`
	Category       string              `json:"category"`
	Confidence     float64             `json:"confidence"`
	Entities       map[string][]string `json:"entities,omitempty"`
	DateReferences []dateRefWire       `json:"dateReferences,omitempty"`
	SourceSnippet  string              `json:"sourceSnippet,omitempty"`
}

type dateRefWire struct {
	Raw  string `json:"raw"`
	Date string `json:"date,omitempty"`
}

// validateCandidate schema-validates one extracted candidate, returning
// the validation error verbatim so the caller can drop the item (spec
// §4.8: "schema validation dropping incomplete items").
func validateCandidate(raw json.RawMessage) (candidate, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return candidate{}, fmt.Errorf("facts: decoding candidate: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return candidate{}, fmt.Errorf("facts: candidate failed schema validation: %w", err)
	}
	var c candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return candidate{}, fmt.Errorf("facts: decoding candidate: %w", err)
	}
	return c, nil
}
