package session

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultRenewThreshold is the margin before expiry at which a token
	// is renewed instead of being sent.
	DefaultRenewThreshold = time.Minute
	// ExpiresInUnit is the unit of the expiresIn value returned by the backend.
	ExpiresInUnit = time.Minute
)

var (
	ErrNoValidSession   = errors.New("no valid session")
	ErrSnapshotNotFound = errors.New("no persisted snapshot")
)

type (
	// AuthSession is the token pair of the current login.
	// Both tokens are always replaced together.
	//
	//nolint:tagliatelle // persisted format
	AuthSession struct {
		AccessToken  string    `json:"accessToken"`
		RefreshToken string    `json:"refreshToken"`
		ExpiresAt    time.Time `json:"expiresAt"`
	}

	EventKind int
	// Event is published whenever the login state or the token pair changes.
	Event struct {
		Kind     EventKind
		LoggedIn bool
		At       time.Time
	}
)

const (
	EventLogin EventKind = iota
	EventRenewed
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventRenewed:
		return "renewed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// NewAuthSession computes the expiry as renewedAt + expiresIn*unit.
//
//nolint:whitespace // editor/linter issue
func NewAuthSession(
	accessToken, refreshToken string,
	expiresIn int64,
	renewedAt time.Time,
	unit time.Duration,
) AuthSession {
	return AuthSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    renewedAt.Add(time.Duration(expiresIn) * unit),
	}
}

func (s AuthSession) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// NeedsRenewal reports whether now + threshold has reached the expiry.
func (s AuthSession) NeedsRenewal(now time.Time, threshold time.Duration) bool {
	return !now.Add(threshold).Before(s.ExpiresAt)
}

func (s AuthSession) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.ExpiresAt,
	}
}
