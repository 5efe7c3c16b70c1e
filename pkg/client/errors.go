package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mpapenbr/participant-core-go/pkg/session"
	"github.com/mpapenbr/participant-core-go/pkg/validation"
)

const GenericErrorMessage = "The request failed. Please try again later."

// APIError is returned for every non 2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

//nolint:lll // readability
var knownErrorMessages = map[string]string{
	"invalid-credentials":      "Wrong email or password.",
	"account-not-confirmed":    "Please confirm your account first.",
	"account-locked":           "Too many attempts. Please wait before trying again.",
	"email-exists":             "An account with this email exists already.",
	"survey-not-found":         "The survey is not available.",
	"survey-not-active":        "The survey is no longer active.",
	"study-not-active":         "The study is not active.",
	"invalid-temp-participant": "Your anonymous participation could not be linked to your account.",
	"temp-participant-assumed": "Your anonymous participation was linked already.",
	"invalid-profile":          "The selected profile is not valid.",
	"refresh-token-expired":    "Your session expired. Please log in again.",
	"rate-limit":               "Too many requests. Please wait a moment.",
}

// UserMessage maps an error to a message suitable for a participant.
// Unknown codes fall back to a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, session.ErrNoValidSession):
		return knownErrorMessages["refresh-token-expired"]
	case errors.Is(err, validation.ErrInvalidEmail):
		return "Please enter a valid email address."
	case errors.Is(err, validation.ErrPasswordTooShort),
		errors.Is(err, validation.ErrPasswordTooWeak):
		return "The password does not meet the requirements."
	case errors.Is(err, validation.ErrPasswordMismatch):
		return "The passwords do not match."
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg, ok := knownErrorMessages[apiErr.Code]; ok {
			return msg
		}
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return knownErrorMessages["rate-limit"]
		}
	}
	return GenericErrorMessage
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
