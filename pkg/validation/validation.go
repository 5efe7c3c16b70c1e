// Package validation holds the client side checks that run before a
// request is sent. They never touch the network.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const MinPasswordLength = 8

var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooWeak  = errors.New("password needs at least three character classes")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires MinPasswordLength characters from at least
// three of the classes lower case, upper case, digit and symbol.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	classes := 0
	for _, b := range []bool{lower, upper, digit, symbol} {
		if b {
			classes++
		}
	}
	if classes < 3 {
		return ErrPasswordTooWeak
	}
	return nil
}

func ValidatePasswordConfirmation(password, confirmation string) error {
	if password != confirmation {
		return ErrPasswordMismatch
	}
	return nil
}
