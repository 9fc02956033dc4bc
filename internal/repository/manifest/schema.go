package manifest

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaURL must match the $id of schema.json.
const schemaURL = "https://zeredata.dev/schemas/zere-manifest.json"

//go:embed schema.json
var schemaDocument string

//nolint:gochecknoglobals // Compiled once on first use.
var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaDocument)); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	return schema, nil
})

// validateSchema checks a generic document against the embedded schema.
func validateSchema(document any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	return nil
}
