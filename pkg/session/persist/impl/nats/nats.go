package nats

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist/factory"
)

const DefaultBucket = "pcc_state"

type (
	Option            func(*natsStorageConfig)
	natsStorageConfig struct {
		nc     *nats.Conn
		bucket string
		ttl    time.Duration
	}

	// natsStorage keeps the snapshot in a JetStream key value bucket so that
	// several client processes of the same participant share one login.
	natsStorage struct {
		cfg    *persist.Config
		ownCfg *natsStorageConfig
		kv     jetstream.KeyValue
		log    *log.Logger
	}
)

var PersisterTypeNats factory.PersisterType = "nats"

var _ persist.Persister = (*natsStorage)(nil)

var ErrNoNatsConn = errors.New("no nats connection configured")

func WithNATS(nc *nats.Conn) Option {
	return func(c *natsStorageConfig) {
		c.nc = nc
	}
}

func WithBucket(bucket string) Option {
	return func(c *natsStorageConfig) {
		c.bucket = bucket
	}
}

// WithTTL limits how long a snapshot survives without being rewritten.
// Zero keeps it until cleared.
func WithTTL(d time.Duration) Option {
	return func(c *natsStorageConfig) {
		c.ttl = d
	}
}

func New(common []persist.Option, specific []Option) (persist.Persister, error) {
	ownCfg := &natsStorageConfig{bucket: DefaultBucket}
	for _, o := range specific {
		o(ownCfg)
	}
	if ownCfg.nc == nil {
		return nil, ErrNoNatsConn
	}
	ret := &natsStorage{
		cfg:    persist.NewConfig(common...),
		ownCfg: ownCfg,
		log:    log.Default().Named("session.persist.nats"),
	}
	ret.log.Debug("Initializing NATS storage for state snapshot",
		log.String("bucket", ownCfg.bucket))
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *natsStorage) init() error {
	var js jetstream.JetStream
	var err error
	if js, err = jetstream.New(s.ownCfg.nc); err != nil {
		return err
	}
	s.kv, err = js.CreateOrUpdateKeyValue(context.Background(), jetstream.KeyValueConfig{
		Bucket: s.ownCfg.bucket,
		TTL:    s.ownCfg.ttl,
	})
	return err
}

func (s *natsStorage) Load(ctx context.Context) ([]byte, error) {
	kve, err := s.kv.Get(ctx, s.cfg.Key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, persist.ErrNotFound
		}
		return nil, err
	}
	return kve.Value(), nil
}

func (s *natsStorage) Save(ctx context.Context, data []byte) error {
	_, err := s.kv.Put(ctx, s.cfg.Key, data)
	return err
}

func (s *natsStorage) Clear(ctx context.Context) error {
	err := s.kv.Delete(ctx, s.cfg.Key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}

func init() {
	factory.Register(PersisterTypeNats, New)
}
