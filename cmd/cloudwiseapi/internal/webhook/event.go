package webhook

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed event.schema.json
var eventSchemaJSON string

// Event is a verified payment processor event. Data.Object is left raw for
// the type-specific handler to decode.
type Event struct {
	ID         string    `json:"id"`
	Object     string    `json:"object"`
	Type       string    `json:"type"`
	Created    int64     `json:"created"`
	Livemode   bool      `json:"livemode"`
	APIVersion string    `json:"api_version,omitempty"`
	Data       EventData `json:"data"`
}

// EventData holds the object the event is about.
type EventData struct {
	Object             json.RawMessage `json:"object"`
	PreviousAttributes json.RawMessage `json:"previous_attributes,omitempty"`
}

// CreatedAt returns Created as a time.
func (e *Event) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

func compileEventSchema() (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse event schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	const schemaURL = "event.schema.json"
	if err := compiler.AddResource(schemaURL, parsed); err != nil {
		return nil, fmt.Errorf("add event schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return schema, nil
}

// decodeEvent checks payload against the envelope schema and decodes it.
func decodeEvent(schema *jsonschema.Schema, payload []byte) (*Event, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, fmt.Errorf("payload at %s: %w", instancePath(ve), err)
		}
		return nil, err
	}

	event := &Event{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

func instancePath(ve *jsonschema.ValidationError) string {
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "$"
	}
	return "$." + strings.Join(parts, ".")
}
