// Package factory maps the --state-store value to a persister
// implementation. Implementations register themselves in init.
package factory

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
)

type PersisterType string

var (
	ErrPersisterTypeNotSupported = errors.New("persister type not supported")
	ErrPersisterWrongCreator     = errors.New("persister wrong creator")
)

// Creator builds a persister from the options shared by all implementations
// and the ones specific to it.
//
//nolint:lll // readability
type Creator[ImplOpt any] func(common []persist.Option, specific []ImplOpt) (persist.Persister, error)

var (
	mu       sync.RWMutex
	registry = map[PersisterType]any{}
)

// Register panics if key is taken already.
func Register[ImplOpt any](key PersisterType, creator Creator[ImplOpt]) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[key]; ok {
		panic(fmt.Sprintf("persister %q registered twice", key))
	}
	registry[key] = creator
}

// New creates the persister registered for key. ImplOpt has to match the
// option type the implementation registered with.
//
//nolint:whitespace //editor/linter issue
func New[ImplOpt any](
	key PersisterType,
	common []persist.Option,
	specific []ImplOpt,
) (persist.Persister, error) {
	mu.RLock()
	entry, ok := registry[key]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)",
			ErrPersisterTypeNotSupported, key, Types())
	}
	creator, ok := entry.(Creator[ImplOpt])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPersisterWrongCreator, key)
	}
	return creator(common, specific)
}

// Types lists the registered persister types, sorted.
func Types() []PersisterType {
	mu.RLock()
	defer mu.RUnlock()
	ret := lo.Keys(registry)
	slices.Sort(ret)
	return ret
}
