package workflow

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
)

//go:embed content_schema.json
var contentSchemaJSON []byte

// Validator checks content payloads against the compiled JSON schema. The
// schema constrains field types and enum values; required-field checks live
// in the engine because corrections are partial payloads.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(contentSchemaJSON, rs); err != nil {
		return nil, fmt.Errorf("compile content schema: %w", err)
	}

	return &Validator{schema: rs}, nil
}

// ValidateContent validates a raw content payload. Schema violations are
// reported as ErrInvalidInput.
func (v *Validator) ValidateContent(ctx context.Context, raw []byte) error {
	keyErrs, err := v.schema.ValidateBytes(ctx, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(keyErrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, keyErrs[0].Error())
	}

	return nil
}
