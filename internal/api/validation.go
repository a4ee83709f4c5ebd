package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"todoservice/shared/types"
)

const maxBodyBytes = 1 << 20

const createTodoSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["title", "status", "priority"],
  "properties": {
    "title":       {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "status":      {"type": "string", "enum": ["planned", "in_progress", "completed", "error"]},
    "priority":    {"type": "string", "enum": ["low", "medium", "high"]},
    "tags":        {"type": "array", "items": {"type": "string"}}
  }
}`

// updateTodoSchema has no required fields; id and createdAt are rejected
// as unknown properties
const updateTodoSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "title":       {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "status":      {"type": "string", "enum": ["planned", "in_progress", "completed", "error"]},
    "priority":    {"type": "string", "enum": ["low", "medium", "high"]},
    "tags":        {"type": "array", "items": {"type": "string"}}
  }
}`

type validators struct {
	create *jsonschema.Schema
	update *jsonschema.Schema
}

func compileSchema(name, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

func newValidators() (*validators, error) {
	create, err := compileSchema("create-todo.json", createTodoSchema)
	if err != nil {
		return nil, err
	}
	update, err := compileSchema("update-todo.json", updateTodoSchema)
	if err != nil {
		return nil, err
	}
	return &validators{create: create, update: update}, nil
}

// errInvalidJSON marks a body that is not JSON at all
var errInvalidJSON = errors.New("request body is not valid JSON")

// decodeBody reads the request body, checks it against schema and decodes
// it into out. Shape problems come back as *types.ValidationErrors.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, out interface{}) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	var doc interface{}
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return errInvalidJSON
	}
	if err := schema.Validate(doc); err != nil {
		return schemaErrors(err)
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return errInvalidJSON
	}
	return nil
}

// schemaErrors flattens the leaves of a jsonschema error tree
func schemaErrors(err error) *types.ValidationErrors {
	ve := types.NewValidationErrors()
	var schemaErr *jsonschema.ValidationError
	if !errors.As(err, &schemaErr) {
		ve.Add("", "", err.Error(), "invalid")
		return ve
	}
	collectSchemaErrors(schemaErr, ve)
	return ve
}

func collectSchemaErrors(e *jsonschema.ValidationError, ve *types.ValidationErrors) {
	if len(e.Causes) == 0 {
		field := strings.TrimPrefix(e.InstanceLocation, "/")
		ve.Add(strings.ReplaceAll(field, "/", "."), "", e.Message, "schema")
		return
	}
	for _, cause := range e.Causes {
		collectSchemaErrors(cause, ve)
	}
}
