package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"recipient_id": {Type: "string"},
			"title":        {Type: "string", MaxLength: intPtr(10)},
			"severity":     {Type: "string", Enum: []string{"info", "success", "warning", "error"}},
			"count":        {Type: "number"},
			"read":         {Type: "boolean"},
		},
		Required:             []string{"recipient_id", "title"},
		AdditionalProperties: false,
	}
}

func intPtr(v int) *int {
	return &v
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name        string
		input       map[string]interface{}
		valid       bool
		failedField string
	}{
		{
			name:  "valid input",
			input: map[string]interface{}{"recipient_id": "u1", "title": "hello", "severity": "info"},
			valid: true,
		},
		{
			name:        "missing required field",
			input:       map[string]interface{}{"title": "hello"},
			valid:       false,
			failedField: "recipient_id",
		},
		{
			name:        "empty string counts as missing",
			input:       map[string]interface{}{"recipient_id": "", "title": "hello"},
			valid:       false,
			failedField: "recipient_id",
		},
		{
			name:        "wrong type",
			input:       map[string]interface{}{"recipient_id": "u1", "title": float64(12)},
			valid:       false,
			failedField: "title",
		},
		{
			name:        "enum violation",
			input:       map[string]interface{}{"recipient_id": "u1", "title": "t", "severity": "fatal"},
			valid:       false,
			failedField: "severity",
		},
		{
			name:        "max length violation",
			input:       map[string]interface{}{"recipient_id": "u1", "title": "this title is far too long"},
			valid:       false,
			failedField: "title",
		},
		{
			name:        "extra field rejected",
			input:       map[string]interface{}{"recipient_id": "u1", "title": "t", "bogus": "x"},
			valid:       false,
			failedField: "bogus",
		},
		{
			name:  "number and boolean types accepted",
			input: map[string]interface{}{"recipient_id": "u1", "title": "t", "count": float64(3), "read": true},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, testSchema())

			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.failedField, result.Errors[0].Field)
				assert.Contains(t, result.Summary(), tt.failedField)
			}
		})
	}
}

func TestGetSchemaFromJSON(t *testing.T) {
	schema, err := GetSchemaFromJSON(`{
		"type": "object",
		"properties": {
			"kind": {"type": "string", "enum": ["status_changed", "assigned", "priority_changed"]}
		},
		"required": ["kind"]
	}`)

	require.NoError(t, err)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"kind"}, schema.Required)
	assert.Len(t, schema.Properties["kind"].Enum, 3)

	_, err = GetSchemaFromJSON("{broken")
	assert.Error(t, err)
}
