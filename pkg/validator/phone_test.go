package validator

import (
	"testing"

	playground "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"0771234567", "0771234567", "Local format"},
		{"077 123 4567", "0771234567", "With spaces"},
		{"077-123-4567", "0771234567", "With dashes"},
		{"077.123.4567", "0771234567", "With dots"},
		{"(077) 123 4567", "0771234567", "With parentheses"},
		{"+91 98765 43210", "+919876543210", "International"},
		{"0091-98765-43210", "+919876543210", "Double zero prefix"},
		{"1234567", "1234567", "Shortest"},
		{"+123456789012345", "+123456789012345", "Longest"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	invalidNumbers := []struct {
		input string
		err   error
		name  string
	}{
		{"", ErrEmptyPhone, "Empty"},
		{"   ", ErrEmptyPhone, "Whitespace"},
		{"077123abcd", ErrInvalidFormat, "Letters"},
		{"77+1234567", ErrInvalidFormat, "Plus in the middle"},
		{"123456", ErrInvalidLength, "Too short"},
		{"+1234567890123456", ErrInvalidLength, "Too long"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.err)
			assert.False(t, validator.IsValid(tc.input))
		})
	}
}

func TestRegisterPhoneTag(t *testing.T) {
	v := playground.New()
	require.NoError(t, RegisterPhoneTag(v))

	type contact struct {
		Phone string `validate:"required,phone"`
	}

	assert.NoError(t, v.Struct(contact{Phone: "+94 77 123 4567"}))
	assert.Error(t, v.Struct(contact{Phone: "call me"}))
}
