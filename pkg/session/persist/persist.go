package persist

import (
	"context"
	"errors"
)

// DefaultKey is the single storage key of the state snapshot.
const DefaultKey = "pcc.state"

var ErrNotFound = errors.New("snapshot not found")

type (
	// Persister stores one serialized snapshot.
	Persister interface {
		Load(ctx context.Context) ([]byte, error)
		Save(ctx context.Context, data []byte) error
		// Clear removes the snapshot. Clearing a missing snapshot is not an error.
		Clear(ctx context.Context) error
	}
	Config struct {
		Key string
	}
	Option func(*Config)
)

func WithKey(key string) Option {
	return func(c *Config) {
		c.Key = key
	}
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{Key: DefaultKey}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}
