package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema for job variables.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema given as decoded JSON.
func Compile(schema map[string]interface{}) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid input schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

// Validate checks input against the schema. A schema failure is reported as a single
// SCHEMA_ERROR entry.
func (s *Schema) Validate(input map[string]interface{}) *ValidationResult {
	if input == nil {
		input = map[string]interface{}{}
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "SCHEMA_ERROR"}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldName(re),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}

	return &ValidationResult{
		Valid:  result.Valid(),
		Errors: errs,
	}
}

// ValidateInput compiles schema and validates input in one step.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) *ValidationResult {
	compiled, err := Compile(schema)
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "SCHEMA_ERROR"}},
		}
	}
	return compiled.Validate(input)
}

// required errors are reported against the parent, so name the missing property instead.
func fieldName(re gojsonschema.ResultError) string {
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if re.Field() == "(root)" {
				return prop
			}
			return re.Field() + "." + prop
		}
	}
	return re.Field()
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
