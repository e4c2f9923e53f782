package storage

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// collectionDefinitions holds the schema definitions shared by context and
// user records, which both carry a domain-keyed credential collection.
const collectionDefinitions = `{
    "domainEntry": {
      "type": "object",
      "required": ["domain"],
      "properties": {
        "domain": {"$ref": "#/definitions/domain"},
        "credentials": {
          "type": "array",
          "items": {"$ref": "#/definitions/credential"}
        }
      }
    },
    "domain": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "description": {"type": "string"},
        "specifications": {
          "type": "array",
          "items": {"$ref": "#/definitions/specification"}
        }
      }
    },
    "specification": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["hostname", "scheme", "path", "expression"]},
        "includes": {"type": "array", "items": {"type": "string"}},
        "excludes": {"type": "array", "items": {"type": "string"}},
        "schemes": {"type": "array", "items": {"type": "string"}},
        "case_sensitive": {"type": "boolean"},
        "attribute": {"type": "string"},
        "expression": {"type": "string"}
      }
    },
    "credential": {
      "type": "object",
      "required": ["kind", "scope"],
      "properties": {
        "kind": {"type": "string", "minLength": 1},
        "id": {"type": "string"},
        "scope": {"enum": ["SYSTEM", "GLOBAL", "USER"]},
        "description": {"type": "string"},
        "data": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        }
      }
    }
  }`

var contextSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "context credential record",
  "type": "object",
  "required": ["path", "domains"],
  "properties": {
    "path": {"type": "string", "minLength": 1},
    "domains": {
      "type": "array",
      "items": {"$ref": "#/definitions/domainEntry"}
    }
  },
  "definitions": ` + collectionDefinitions + `
}`

var userSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "user record",
  "type": "object",
  "required": ["id", "domains"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "domains": {
      "type": "array",
      "items": {"$ref": "#/definitions/domainEntry"}
    }
  },
  "definitions": ` + collectionDefinitions + `
}`

const policySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "policy record",
  "type": "object",
  "required": ["provider_filter", "kind_filter"],
  "properties": {
    "provider_filter": {
      "type": "object",
      "required": ["mode"],
      "properties": {
        "mode": {"enum": ["all", "includes", "excludes"]},
        "names": {"type": "array", "items": {"type": "string"}}
      }
    },
    "kind_filter": {
      "type": "object",
      "required": ["mode"],
      "properties": {
        "mode": {"enum": ["all", "includes", "excludes"]},
        "kinds": {"type": "array", "items": {"type": "string"}}
      }
    },
    "restrictions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind", "provider", "credential_kind"],
        "properties": {
          "kind": {"enum": ["includes", "excludes"]},
          "provider": {"type": "string", "minLength": 1},
          "credential_kind": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// validateSchema validates raw record bytes against a JSON schema
func validateSchema(data []byte, schema string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}
