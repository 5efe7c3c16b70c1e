package auth

import (
	"context"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/session"
)

// Resetter drops all client side session state.
type Resetter struct {
	store  *session.Store
	header *DefaultHeader
	hooks  []func(ctx context.Context)
	l      *log.Logger
}

//nolint:whitespace // editor/linter issue
func NewResetter(
	store *session.Store,
	header *DefaultHeader,
	opts ...ResetterOption,
) *Resetter {
	ret := &Resetter{
		store:  store,
		header: header,
		l:      log.Default().Named("client.auth.reset"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Reset is idempotent and never fails. Storage errors are logged by the store.
func (r *Resetter) Reset(ctx context.Context) {
	r.store.Clear(ctx)
	r.header.Clear()
	for _, hook := range r.hooks {
		hook(ctx)
	}
	r.l.Debug("session reset")
}
