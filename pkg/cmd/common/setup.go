package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/client"
	"github.com/mpapenbr/participant-core-go/pkg/config"
	"github.com/mpapenbr/participant-core-go/pkg/session"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist/factory"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist/impl/file"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist/impl/memory"
	natsPersist "github.com/mpapenbr/participant-core-go/pkg/session/persist/impl/nats"
	"github.com/mpapenbr/participant-core-go/pkg/utils"
)

// Env is what every command works with.
type Env struct {
	Client *client.Client
	Store  *session.Store
	closer []func()
}

func (e *Env) Close() {
	for i := len(e.closer) - 1; i >= 0; i-- {
		e.closer[i]()
	}
	_ = log.Sync()
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func InitLogger() {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)
}

func parseDuration(name, value string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn("Invalid duration value. Using default",
			log.String("name", name),
			log.String("value", value),
			log.Duration("default", defaultVal))
		return defaultVal
	}
	return d
}

// NewPersister creates the state store configured by --state-store.
// The returned func releases resources held by the persister.
func NewPersister() (persist.Persister, func(), error) {
	opts := []persist.Option{persist.WithKey(config.StateKey)}
	noop := func() {}
	switch factory.PersisterType(config.StateStore) {
	case memory.PersisterTypeMemory:
		p, err := factory.New[memory.Option](
			memory.PersisterTypeMemory, opts, nil)
		return p, noop, err
	case file.PersisterTypeFile:
		p, err := factory.New[file.Option](file.PersisterTypeFile, opts,
			[]file.Option{file.WithDirectory(config.StateDir)})
		return p, noop, err
	case natsPersist.PersisterTypeNats:
		nc, err := nats.Connect(config.NatsURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect nats: %w", err)
		}
		p, err := factory.New[natsPersist.Option](
			natsPersist.PersisterTypeNats, opts,
			[]natsPersist.Option{
				natsPersist.WithNATS(nc),
				natsPersist.WithBucket(config.NatsBucket),
			})
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		return p, nc.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q (available: %v)",
			factory.ErrPersisterTypeNotSupported, config.StateStore, factory.Types())
	}
}

// Setup builds the session store and the API client. A remembered login
// is restored.
func Setup(ctx context.Context) (*Env, error) {
	InitLogger()
	log.Debug("Config:",
		log.String("api", config.APIURL),
		log.String("instance", config.InstanceID),
		log.String("stateStore", config.StateStore))

	if timeout := parseDuration("wait-for-services", config.WaitForServices, 0); timeout > 0 {
		if err := utils.WaitForHTTPResponse(config.APIURL, timeout); err != nil {
			return nil, err
		}
	}

	env := &Env{}
	p, closePersister, err := NewPersister()
	if err != nil {
		return nil, err
	}
	env.closer = append(env.closer, closePersister)

	env.Store = session.NewStore(
		session.WithPersister(p),
		session.WithRemember(config.RememberMe),
		session.WithLogger(log.Default().Named("session")))
	env.closer = append(env.closer, env.Store.Close)
	if err := env.Store.Restore(ctx); err != nil && !errors.Is(err, session.ErrSnapshotNotFound) {
		log.Warn("could not restore state", log.ErrorField(err))
	}

	env.Client, err = client.New(config.APIURL, env.Store,
		client.WithInstanceID(config.InstanceID),
		client.WithRenewThreshold(
			parseDuration("renew-threshold", config.RenewThreshold, session.DefaultRenewThreshold)),
		client.WithLockTimeout(parseDuration("lock-timeout", config.LockTimeout, time.Minute)),
		client.WithTimeout(parseDuration("request-timeout", config.RequestTimeout, 30*time.Second)),
		client.WithLogger(log.Default().Named("client")))
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}
