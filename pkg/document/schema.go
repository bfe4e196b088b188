package document

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const stateSchemaJSON = `{
  "type": "object",
  "required": ["day", "player", "world"],
  "properties": {
    "day": {"type": "number"},
    "player": {"type": "object"},
    "world": {"type": "object"}
  }
}`

const documentSchemaJSON = `{
  "type": "object",
  "required": ["metadata", "game_state"],
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["id", "created_at", "last_accessed_at", "updated_at", "expires_at", "format_version"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "created_at": {"type": "string"},
        "last_accessed_at": {"type": "string"},
        "updated_at": {"type": "string"},
        "expires_at": {"type": "string"},
        "format_version": {"type": "string", "minLength": 1}
      }
    },
    "game_state": ` + stateSchemaJSON + `
  }
}`

var (
	schemaOnce     sync.Once
	stateSchema    *gojsonschema.Schema
	documentSchema *gojsonschema.Schema
)

func loadSchemas() {
	schemaOnce.Do(func() {
		stateSchema = mustSchema(stateSchemaJSON)
		documentSchema = mustSchema(documentSchemaJSON)
	})
}

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("document: invalid built-in schema: %v", err))
	}
	return s
}

// ValidateState checks the minimal structure every game state must have:
// a numeric day and object-valued player and world.
func ValidateState(state State) error {
	if state == nil {
		return fmt.Errorf("%w: state is empty", ErrInvalidDocument)
	}
	loadSchemas()
	result, err := stateSchema.Validate(gojsonschema.NewGoLoader(map[string]any(state)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, describe(result.Errors()))
	}
	return nil
}

func validateEnvelope(raw []byte) error {
	loadSchemas()
	result, err := documentSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if !result.Valid() {
		return fmt.Errorf("%w: %s", ErrCorruptDocument, describe(result.Errors()))
	}
	return nil
}

func describe(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
