package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequired(t *testing.T) {
	testCases := []struct {
		name     string
		fields   []Field
		expected string
	}{
		{
			name:   "all present",
			fields: []Field{{"company_name", "Acme"}, {"machine_id", "M1"}},
		},
		{
			name:     "one missing",
			fields:   []Field{{"company_name", "Acme"}, {"machine_id", ""}},
			expected: "machine_id required",
		},
		{
			name:     "whitespace counts as missing",
			fields:   []Field{{"company_name", "   "}},
			expected: "company_name required",
		},
		{
			name:     "several missing",
			fields:   []Field{{"company_name", ""}, {"employee_id", ""}, {"machine_id", ""}},
			expected: "company_name, employee_id and machine_id required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Required(tc.fields...)
			if tc.expected == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tc.expected, err.Error())
		})
	}
}

func TestNotFound(t *testing.T) {
	err := fmt.Errorf("lookup failed: %w", NotFound("command 7"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "lookup failed: command 7 not found", err.Error())
}
