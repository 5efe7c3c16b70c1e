package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("no access token")

// Claims are the participant specific claims of an access token.
//
//nolint:tagliatelle // external API
type Claims struct {
	UserID           string   `json:"id"`
	InstanceID       string   `json:"instance_id"`
	ProfileID        string   `json:"profile_id"`
	OtherProfileIDs  []string `json:"other_profile_ids,omitempty"`
	AccountConfirmed bool     `json:"account_confirmed,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the claims without verifying the signature.
// The client only reads them for display and routing decisions, the
// backend verifies every token it receives.
func ParseClaims(accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}
