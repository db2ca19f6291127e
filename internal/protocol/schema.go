package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"bigharvest.farm/configs"
)

const schemaBase = "https://bigharvest.farm/schemas/"

// Schemas validates inbound documents against the shipped JSON schemas.
type Schemas struct {
	state *jsonschema.Schema
	act   *jsonschema.Schema
}

// LoadSchemas compiles the schemas embedded in the binary.
func LoadSchemas() (*Schemas, error) {
	return LoadSchemasFS(configs.FS)
}

func LoadSchemasFS(fsys fs.FS) (*Schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	for _, name := range []string{"state.schema.json", "act.schema.json"} {
		raw, err := fs.ReadFile(fsys, "schemas/"+name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	state, err := c.Compile(schemaBase + "state.schema.json")
	if err != nil {
		return nil, fmt.Errorf("state.schema.json: %w", err)
	}
	act, err := c.Compile(schemaBase + "act.schema.json")
	if err != nil {
		return nil, fmt.Errorf("act.schema.json: %w", err)
	}
	return &Schemas{state: state, act: act}, nil
}

// ValidateState checks a posted state document. raw must be a JSON object.
func (s *Schemas) ValidateState(raw []byte) error {
	return validate(s.state, raw)
}

func (s *Schemas) ValidateAct(raw []byte) error {
	return validate(s.act, raw)
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return err
	}
	return nil
}
