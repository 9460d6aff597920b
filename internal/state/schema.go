package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/postnome/postnome/internal/ir"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "postnome-settings.json"

var (
	schemaOnce     sync.Once
	compiledSchema *sjsonschema.Schema
	schemaErr      error
)

// GenerateSchema produces the JSON Schema of the settings document from the
// ir.Document struct.
func GenerateSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&ir.Document{})
	s.Title = "Postnome settings"
	s.Description = "Variables, resources and requests persisted by postnome"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

func settingsSchema() (*sjsonschema.Schema, error) {
	schemaOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a JSON encoded settings document against the schema.
func Validate(data []byte) error {
	sch, err := settingsSchema()
	if err != nil {
		return err
	}
	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		var ve *sjsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		var msgs []string
		for _, cause := range flattenValidationErrors(ve) {
			msgs = append(msgs, fmt.Sprintf("/%s: %v", strings.Join(cause.InstanceLocation, "/"), cause.ErrorKind))
		}
		return fmt.Errorf("invalid settings document: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
