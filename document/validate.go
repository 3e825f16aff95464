package document

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaFile = "diddoc-schema.json"

// Schema describes the minimal shape of a resolved DID document.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Peer DID document",
  "type": "object",
  "required": ["@context"],
  "properties": {
    "@context": {
      "type": "string",
      "pattern": "^https://w3id.org/did/v1"
    },
    "id": {"type": "string"},
    "publicKey": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string"},
          "type": {"type": "string"}
        }
      }
    },
    "authentication": {"type": "array"},
    "service": {"type": "array"},
    "authorization": {
      "type": "object",
      "properties": {
        "profiles": {"type": "array"}
      }
    },
    "rules": {"type": "array"}
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error

	missingProperty = regexp.MustCompile(`'([^']+)'`)
)

// ValidationError reports a document that fails the basic shape checks.
type ValidationError struct {
	Property string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Property == "" {
		return "invalid DID doc: " + e.Reason
	}
	return fmt.Sprintf("invalid DID doc: property %q: %s", e.Property, e.Reason)
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString(schemaFile, Schema)
	})
	return compiled, compileErr
}

// Validate checks v against Schema. Failures are returned as
// *ValidationError naming the offending property.
func Validate(v *Value) error {
	sch, err := schema()
	if err != nil {
		return fmt.Errorf("compile DID doc json schema: %w", err)
	}
	err = sch.Validate(v.Interface())
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate DID doc: %w", err)
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	property := strings.ReplaceAll(strings.TrimPrefix(leaf.InstanceLocation, "/"), "/", ".")
	if strings.HasSuffix(leaf.KeywordLocation, "/required") {
		if m := missingProperty.FindStringSubmatch(leaf.Message); m != nil {
			if property != "" {
				property += "."
			}
			property += m[1]
		}
	}
	return &ValidationError{Property: property, Reason: leaf.Message}
}

// ValidateJSON parses data and validates it.
func ValidateJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return Validate(v)
}
