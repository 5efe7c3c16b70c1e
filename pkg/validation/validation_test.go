package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"participant@example.org", true},
		{" participant@example.org ", true},
		{"first.last+tag@sub.example.co", true},
		{"", false},
		{"no-at-sign.example.org", false},
		{"two@@example.org", false},
		{"missing@tld", false},
		{"space in@example.org", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidEmail)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short", "aB1!", ErrPasswordTooShort},
		{"lower only", "abcdefghij", ErrPasswordTooWeak},
		{"lower and upper", "abcdEFGHij", ErrPasswordTooWeak},
		{"lower upper digit", "abcdEFGH12", nil},
		{"lower digit symbol", "abcd1234!!", nil},
		{"all classes", "aB3$efgh", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestValidatePasswordConfirmation(t *testing.T) {
	assert.NoError(t, ValidatePasswordConfirmation("aB3$efgh", "aB3$efgh"))
	assert.ErrorIs(t, ValidatePasswordConfirmation("aB3$efgh", "aB3$efgH"), ErrPasswordMismatch)
}
