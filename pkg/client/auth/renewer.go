package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/session"
	"github.com/mpapenbr/participant-core-go/pkg/utils"
)

var ErrInvalidRenewResponse = errors.New("renew response misses tokens")

type (
	// TokenExchanger performs the refresh token exchange. Implementations
	// must not route the call through the Interceptor.
	TokenExchanger interface {
		RenewToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
	}

	Renewer struct {
		store     *session.Store
		header    *DefaultHeader
		exchanger TokenExchanger
		now       func() time.Time
		unit      time.Duration
		renewals  atomic.Int64
		l         *log.Logger
	}
)

//nolint:whitespace // editor/linter issue
func NewRenewer(
	store *session.Store,
	header *DefaultHeader,
	exchanger TokenExchanger,
	opts ...RenewerOption,
) *Renewer {
	ret := &Renewer{
		store:     store,
		header:    header,
		exchanger: exchanger,
		now:       time.Now,
		unit:      session.ExpiresInUnit,
		l:         log.Default().Named("client.auth.renew"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Renew exchanges the current refresh token for a new token pair and
// returns the new access token. State is only touched on success.
func (r *Renewer) Renew(ctx context.Context) (string, error) {
	current, _ := r.store.Current()
	if current.RefreshToken == "" {
		return "", session.ErrNoValidSession
	}
	renewedAt := r.now()
	r.l.Debug("renewing token",
		log.String("refresh", utils.Fingerprint(current.RefreshToken)),
		log.Time("expiresAt", current.ExpiresAt))

	resp, err := r.exchanger.RenewToken(ctx, current.RefreshToken)
	if err != nil {
		r.l.Warn("token renewal failed", log.ErrorField(err))
		return "", fmt.Errorf("renew token: %w", err)
	}
	if resp == nil || resp.AccessToken == "" || resp.RefreshToken == "" {
		return "", ErrInvalidRenewResponse
	}
	renewed := session.NewAuthSession(
		resp.AccessToken, resp.RefreshToken, resp.ExpiresIn, renewedAt, r.unit)
	r.store.Set(ctx, renewed)
	r.header.Set(renewed)
	r.renewals.Add(1)

	r.l.Debug("token renewed",
		log.String("access", utils.Fingerprint(renewed.AccessToken)),
		log.Time("expiresAt", renewed.ExpiresAt))
	return renewed.AccessToken, nil
}

// Renewals returns the number of successful renewals.
func (r *Renewer) Renewals() int64 {
	return r.renewals.Load()
}
