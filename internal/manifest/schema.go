package manifest

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is the JSON Schema manifests are validated against before decoding.
// Platform kinds are deliberately not enumerated: unknown kinds must validate
// so the transport factory can reject them as unsupported.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["platform"],
  "properties": {
    "id": {
      "type": "string",
      "description": "Unique extension identifier"
    },
    "activationEvents": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Activation triggers: \"*\" or \"onLanguage:<id>\""
    },
    "platform": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "type": "string" },
        "url": { "type": "string" },
        "address": { "type": "string" },
        "location": { "type": "string" },
        "contentType": { "type": "string" }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "websocket" } } },
          "then": { "required": ["url"] }
        },
        {
          "if": { "properties": { "type": { "const": "tcp" } } },
          "then": { "required": ["address"] }
        },
        {
          "if": { "properties": { "type": { "const": "bundle" } } },
          "then": { "required": ["location"] }
        }
      ]
    }
  }
}`

var (
	schemaOnce sync.Once
	schemaRes  *jsonschema.Resolved
	schemaErr  error
)

// compiledSchema resolves Schema once per process.
func compiledSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		var schema jsonschema.Schema
		if err := json.Unmarshal([]byte(Schema), &schema); err != nil {
			schemaErr = fmt.Errorf("manifest schema: %w", err)

			return
		}

		schemaRes, schemaErr = schema.Resolve(nil)
	})

	return schemaRes, schemaErr
}

// Parse validates raw manifest JSON against Schema and decodes it.
func Parse(data []byte) (*Manifest, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, err
	}

	if err := schema.Validate(instance); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}
