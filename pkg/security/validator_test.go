package security

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passwordPayload struct {
	Password string `json:"password" validate:"required,maxbytes=8"`
}

func TestNewValidator_MaxBytes(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Struct(passwordPayload{Password: "12345678"}))

	// Four runes, eight bytes.
	assert.NoError(t, v.Struct(passwordPayload{Password: "ääää"}))

	err := v.Struct(passwordPayload{Password: "äääää"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "maxbytes", verrs[0].Tag())
	assert.Equal(t, "password", verrs[0].Field())
}

func TestNewValidator_JSONFieldNames(t *testing.T) {
	type payload struct {
		EmailAddress string `json:"email,omitempty" validate:"required"`
		Untagged     string `validate:"required"`
	}

	err := NewValidator().Struct(payload{})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 2)
	assert.Equal(t, "email", verrs[0].Field())
	assert.Equal(t, "Untagged", verrs[1].Field())
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "john@example.com", expected: "john@example.com"},
		{in: "John@Example.COM", expected: "john@example.com"},
		{in: "  john@example.com\t", expected: "john@example.com"},
		{in: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEmail(tt.in))
		})
	}

	assert.Equal(t, strings.ToLower("ÄBC@example.com"), NormalizeEmail("ÄBC@example.com"))
}
