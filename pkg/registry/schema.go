// pkg/registry/schema.go
package registry

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// registrySchema is the structural contract for registry files. Stage
// ordering and cross-references between tracks and programs are enforced in
// Parse, where the schema language cannot reach.
const registrySchema = `{
  "type": "object",
  "required": ["version", "tracks"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "updatedAt": {"type": "string"},
    "tracks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "name", "kind", "numberPrefix", "stages"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "kind": {"enum": ["new_farmer", "program_enrollment"]},
          "numberPrefix": {"type": "string", "minLength": 1},
          "programId": {"type": "string"},
          "stages": {
            "type": "array",
            "minItems": 1,
            "items": {"enum": ["constituency", "regional", "national"]}
          },
          "requiresEligibility": {"type": "boolean"},
          "stageSlaDays": {
            "type": "object",
            "additionalProperties": {"type": "integer", "minimum": 1}
          },
          "changesDeadlineDays": {"type": "integer", "minimum": 0}
        }
      }
    },
    "programs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["programId"],
        "properties": {
          "programId": {"type": "string", "minLength": 1},
          "minAge": {"type": "integer", "minimum": 0},
          "maxAge": {"type": "integer", "minimum": 0},
          "minMonthsFarming": {"type": "integer", "minimum": 0},
          "maxMonthsFarming": {"type": "integer", "minimum": 0},
          "minCapacity": {"type": "integer", "minimum": 0},
          "maxCapacity": {"type": "integer", "minimum": 0},
          "eligibleCounties": {"type": "array", "items": {"type": "string"}},
          "deadline": {"type": "string"},
          "remainingSlots": {"type": "integer", "minimum": 0}
        }
      }
    },
    "reviewers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "role"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "email": {"type": "string"},
          "phone": {"type": "string"},
          "role": {
            "enum": ["constituency_officer", "regional_officer", "national_officer", "program_admin"]
          },
          "active": {"type": "boolean"}
        }
      }
    }
  }
}`

func validateSchema(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(registrySchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("registry validation failed: %v", errs)
	}

	return nil
}
