package session

import (
	"time"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
)

type (
	Config struct {
		Persister persist.Persister
		Remember  bool
		Logger    *log.Logger
		Now       func() time.Time
	}
	Option func(*Config)
)

func WithPersister(p persist.Persister) Option {
	return func(c *Config) {
		c.Persister = p
	}
}

// WithRemember enables persisting the snapshot ("remember me").
func WithRemember(b bool) Option {
	return func(c *Config) {
		c.Remember = b
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}
