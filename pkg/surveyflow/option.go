package surveyflow

import (
	"time"

	"github.com/mpapenbr/participant-core-go/log"
)

type (
	Config struct {
		ProfileID                   string
		InstanceID                  string
		CompletionURL               string
		CompletionURLWithoutAccount string
		Now                         func() time.Time
		Logger                      *log.Logger
	}
	Option func(*Config)
)

// WithProfileID preselects the profile (the pid query parameter of the
// survey page).
func WithProfileID(id string) Option {
	return func(c *Config) {
		c.ProfileID = id
	}
}

func WithInstanceID(id string) Option {
	return func(c *Config) {
		c.InstanceID = id
	}
}

// WithCompletionURLs sets where to go after the flow ends, with and
// without an account.
func WithCompletionURLs(withAccount, withoutAccount string) Option {
	return func(c *Config) {
		c.CompletionURL = withAccount
		c.CompletionURLWithoutAccount = withoutAccount
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
