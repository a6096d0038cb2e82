package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// manifestSchema constrains harness.json. Target and driver are plain file
// names (no path separators); tests is a unique list of C sources.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "target": {
      "type": "string",
      "minLength": 1,
      "pattern": "^[^/\\\\]+$"
    },
    "driver": {
      "type": "string",
      "minLength": 1,
      "pattern": "^[^/\\\\]+\\.c$"
    },
    "tests": {
      "type": "array",
      "uniqueItems": true,
      "items": {
        "type": "string",
        "minLength": 1,
        "pattern": "^[^/\\\\]+\\.c$"
      }
    }
  }
}`

// validate checks raw manifest bytes against the schema.
func validate(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("data is not valid JSON")
	}

	schemaLoader := gojsonschema.NewStringLoader(manifestSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
