package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist/factory"
)

type (
	Option      func(*fileStorage)
	fileStorage struct {
		cfg *persist.Config
		dir string
		log *log.Logger
	}
)

var PersisterTypeFile factory.PersisterType = "file"

var _ persist.Persister = (*fileStorage)(nil)

var ErrNoDirectory = errors.New("no directory configured for file persister")

// WithDirectory sets the directory that holds the snapshot file.
// The file name is derived from the configured key.
func WithDirectory(dir string) Option {
	return func(s *fileStorage) {
		s.dir = dir
	}
}

func New(common []persist.Option, specific []Option) (persist.Persister, error) {
	ret := &fileStorage{
		cfg: persist.NewConfig(common...),
		log: log.Default().Named("session.persist.file"),
	}
	for _, o := range specific {
		o(ret)
	}
	if ret.dir == "" {
		return nil, ErrNoDirectory
	}
	if err := os.MkdirAll(ret.dir, 0o700); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *fileStorage) path() string {
	return filepath.Join(s.dir, s.cfg.Key+".json")
}

func (s *fileStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persist.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save writes to a temp file first and renames it so a crash never leaves
// a partial snapshot behind.
func (s *fileStorage) Save(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, s.cfg.Key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	s.log.Debug("saving snapshot", log.String("path", s.path()))
	return os.Rename(tmp.Name(), s.path())
}

func (s *fileStorage) Clear(ctx context.Context) error {
	err := os.Remove(s.path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func init() {
	factory.Register(PersisterTypeFile, New)
}
