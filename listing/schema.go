package listing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// treeSchema describes the nested listing form. Children recurse on the
// root schema.
const treeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "type"],
  "properties": {
    "name": {"type": "string"},
    "type": {"enum": ["file", "directory"]},
    "size": {"type": "integer", "minimum": 0},
    "ts": {"type": "integer"},
    "children": {"type": "array", "items": {"$ref": "#"}}
  }
}`

// deviceSchema describes the flat LIST response.
const deviceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["ok"],
  "properties": {
    "ok": {"type": "integer", "enum": [0, 1]},
    "c": {"type": "string"},
    "d": {"type": "string"},
    "t": {"type": "string"},
    "err": {"type": "string"},
    "ts": {"type": "integer"},
    "ch": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["f", "t"],
        "properties": {
          "f": {"type": "string", "minLength": 1},
          "t": {"enum": ["d", "f"]},
          "sz": {"type": "integer", "minimum": 0},
          "ts": {"type": "integer"}
        }
      }
    }
  }
}`

// SchemaError reports a listing that does not match its form's schema.
type SchemaError struct {
	Form       Form
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s listing failed schema validation:\n%s", e.Form, strings.Join(e.Violations, "\n"))
}

var compiled = sync.OnceValues(func() (map[Form]*gojsonschema.Schema, error) {
	out := make(map[Form]*gojsonschema.Schema, 2)
	for form, src := range map[Form]string{FormTree: treeSchema, FormDevice: deviceSchema} {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", form, err)
		}
		out[form] = s
	}
	return out, nil
})

// validate checks data against the schema of form.
func validate(form Form, data []byte) error {
	schemas, err := compiled()
	if err != nil {
		return err
	}

	result, err := schemas[form].Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate %s listing: %w", form, err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("  - %s", desc))
	}
	return &SchemaError{Form: form, Violations: violations}
}
