package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrSchema is returned when a configuration file does not match the schema.
var ErrSchema = errors.New("configuration does not match schema")

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema configuration files are checked against.
func Schema() []byte {
	return schemaJSON
}

// SchemaError is one schema violation.
type SchemaError struct {
	// Field is the dotted path of the offending value, "(root)" for the document.
	Field       string
	Description string
	Value       any
}

func (e SchemaError) String() string {
	return e.Field + ": " + e.Description
}

// SchemaErrors formats as a semicolon separated list.
type SchemaErrors []SchemaError

func (errs SchemaErrors) String() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}

	return strings.Join(parts, "; ")
}

// ValidateFile checks a YAML configuration file against the schema.
func ValidateFile(path string) (SchemaErrors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Validate(data)
}

// Validate checks YAML configuration content against the schema. The error
// is non-nil only when the document cannot be decoded; schema violations are
// returned as SchemaErrors.
func Validate(data []byte) (SchemaErrors, error) {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	problems := make(SchemaErrors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, SchemaError{
			Field:       re.Field(),
			Description: re.Description(),
			Value:       re.Value(),
		})
	}

	return problems, nil
}
