package memory

import (
	"context"
	"sync"

	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist/factory"
)

type (
	Option        func(*memoryStorage)
	memoryStorage struct {
		mu   sync.Mutex
		cfg  *persist.Config
		data map[string][]byte
	}
)

var PersisterTypeMemory factory.PersisterType = "memory"

var _ persist.Persister = (*memoryStorage)(nil)

func New(common []persist.Option, specific []Option) (persist.Persister, error) {
	ret := &memoryStorage{
		cfg:  persist.NewConfig(common...),
		data: make(map[string][]byte),
	}
	for _, o := range specific {
		o(ret)
	}
	return ret, nil
}

func (s *memoryStorage) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.data[s.cfg.Key]; ok {
		return append([]byte(nil), d...), nil
	}
	return nil, persist.ErrNotFound
}

func (s *memoryStorage) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.cfg.Key] = append([]byte(nil), data...)
	return nil
}

func (s *memoryStorage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, s.cfg.Key)
	return nil
}

func init() {
	factory.Register(PersisterTypeMemory, New)
}
