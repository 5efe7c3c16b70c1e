package client

import (
	"net/http"
	"time"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/lock"
)

type (
	Config struct {
		InstanceID             string
		Transport              http.RoundTripper
		Timeout                time.Duration
		RenewThreshold         time.Duration
		LockTimeout            time.Duration
		ExpiresInUnit          time.Duration
		ProfileCacheExpiration time.Duration
		RequestLock            *lock.RequestLock
		Now                    func() time.Time
		Logger                 *log.Logger
	}
	Option func(*Config)
)

func WithInstanceID(id string) Option {
	return func(c *Config) {
		c.InstanceID = id
	}
}

// WithTransport sets the transport below the auth interceptor.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

func WithRenewThreshold(d time.Duration) Option {
	return func(c *Config) {
		c.RenewThreshold = d
	}
}

func WithLockTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LockTimeout = d
	}
}

func WithRequestLock(l *lock.RequestLock) Option {
	return func(c *Config) {
		c.RequestLock = l
	}
}

func WithExpiresInUnit(d time.Duration) Option {
	return func(c *Config) {
		c.ExpiresInUnit = d
	}
}

func WithProfileCacheExpiration(d time.Duration) Option {
	return func(c *Config) {
		c.ProfileCacheExpiration = d
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
