package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// envelopeSchema only pins down the document structure. Per-entry problems are left to Ingest so
// that a single bad entry never rejects the whole payload.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "diff": {
      "type": "object",
      "required": ["materialChanges"],
      "properties": {
        "materialChanges": {"type": "array", "items": {"type": "object"}},
        "summary": {"type": "object"},
        "justification": {"type": "object"}
      }
    }
  },
  "type": "object",
  "anyOf": [
    {"$ref": "#/definitions/diff"},
    {
      "required": ["optimizationDiff"],
      "properties": {"optimizationDiff": {"$ref": "#/definitions/diff"}}
    }
  ]
}`

var envelope = mustCompileSchema(envelopeSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile envelope schema: %v", err))
	}
	return schema
}

// Payload is a decoded raw result: the diff itself plus the generic document it came from, which
// display-metric expressions are evaluated against.
type Payload struct {
	Diff     model.RawOptimizationDiff
	Document any
}

// DecodePayload parses a raw solver result. The diff may be the document itself or nested under
// "optimizationDiff". Structural problems fail with ErrMalformedPayload.
func DecodePayload(data []byte) (*Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	result, err := envelope.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, strings.Join(msgs, "; "))
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var wrapped struct {
		OptimizationDiff *model.RawOptimizationDiff `json:"optimizationDiff"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if wrapped.OptimizationDiff != nil {
		return &Payload{Diff: *wrapped.OptimizationDiff, Document: doc}, nil
	}

	var diff model.RawOptimizationDiff
	if err := json.Unmarshal(data, &diff); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return &Payload{Diff: diff, Document: doc}, nil
}
