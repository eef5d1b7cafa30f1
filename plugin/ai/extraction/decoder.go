// Package extraction turns the model's extraction reply into the value stored
// as a conversation's extracted data.
package extraction

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "github.com/hrygo/orioncx/internal/errors"
)

// Mode selects how a reply is decoded.
type Mode string

const (
	// ModeJSON parses the reply and validates it against the extraction schema.
	ModeJSON Mode = "json"
	// ModeRaw stores the reply text unchanged.
	ModeRaw Mode = "raw"
)

// ParseMode parses a mode name. An empty name selects ModeJSON.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeJSON:
		return ModeJSON, nil
	case ModeRaw:
		return ModeRaw, nil
	}
	return "", fmt.Errorf("unknown extraction mode %q", s)
}

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "extraction.json"

// Fields lists the keys the extraction prompt asks for.
var Fields = []string{
	"user_id",
	"user_name",
	"order_id",
	"product_name",
	"issue",
	"resolution",
	"sentiment",
	"language_detected",
	"agent_actions",
}

// Decoder decodes extraction replies.
type Decoder struct {
	mode   Mode
	schema *jsonschema.Schema
}

// NewDecoder creates a decoder for mode.
func NewDecoder(mode Mode) (*Decoder, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add extraction schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	if mode == "" {
		mode = ModeJSON
	}
	return &Decoder{mode: mode, schema: schema}, nil
}

// Mode returns the decoder mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Decode converts reply into a JSON-serializable value.
func (d *Decoder) Decode(reply string) (any, error) {
	if d.mode == ModeRaw {
		return reply, nil
	}

	payload := stripFence(reply)
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, apperrors.Validation("INVALID_EXTRACTED_DATA", "extraction reply is not valid JSON").
			WithDetail("error", err.Error())
	}
	if err := d.schema.Validate(v); err != nil {
		return nil, apperrors.Validation("INVALID_EXTRACTED_DATA", "extraction reply does not match the schema").
			WithDetail("error", err.Error())
	}
	return v, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
