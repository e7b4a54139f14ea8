package main

import (
	"encoding/json"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/lexlanka/gavel/pkg/config"
)

// SchemaCmd emits a JSON schema for the configuration file, suitable
// for editor validation and config tooling.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://lexlanka.dev/schemas/gavel.json"
	schema.Title = "Gavel Configuration Schema"
	schema.Description = "Configuration schema for the Gavel legal QA service"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(schema)
}
