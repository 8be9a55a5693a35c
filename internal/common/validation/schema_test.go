package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"question", "languageCode"},
		"properties": map[string]interface{}{
			"question":     map[string]interface{}{"type": "string", "minLength": 1},
			"languageCode": map[string]interface{}{"type": "string", "pattern": "^[a-z]{2,3}$"},
			"maxChars":     map[string]interface{}{"type": "integer", "minimum": 1},
		},
	}
}

func TestValidateInputAcceptsValidVariables(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"question":     "What field was he known for?",
		"languageCode": "en",
		"maxChars":     float64(4000),
	}, questionSchema())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInputReportsMissingField(t *testing.T) {
	result := ValidateInput(map[string]interface{}{"question": "Who?"}, questionSchema())

	require.False(t, result.Valid)
	assert.True(t, result.HasErrors("languageCode"))
	assert.Equal(t, "REQUIRED", result.Errors[0].Code)
}

func TestValidateInputReportsViolations(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"question":     "",
		"languageCode": "English",
		"maxChars":     float64(0),
	}, questionSchema())

	require.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
	assert.True(t, result.HasErrors("question"))
	assert.True(t, result.HasErrors("languageCode"))
	assert.True(t, result.HasErrors("maxChars"))
	assert.Len(t, result.GetErrorMessages(), 3)
}

func TestCompileRejectsBrokenSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 42})
	assert.Error(t, err)

	result := ValidateInput(map[string]interface{}{}, map[string]interface{}{"type": 42})
	assert.False(t, result.Valid)
	assert.Equal(t, "SCHEMA_ERROR", result.Errors[0].Code)
}

func TestNilInputIsAnEmptyObject(t *testing.T) {
	s, err := Compile(questionSchema())
	require.NoError(t, err)

	result := s.Validate(nil)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}
