package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/lock"
)

const DefaultRenewPath = "/v1/auth/renew-token"

type (
	RenewerOption     func(*Renewer)
	ResetterOption    func(*Resetter)
	InterceptorOption func(*Interceptor)
)

func WithRenewClock(now func() time.Time) RenewerOption {
	return func(r *Renewer) {
		r.now = now
	}
}

// WithExpiresInUnit sets the unit of the expiresIn value. Tests use it to
// get short lived sessions.
func WithExpiresInUnit(d time.Duration) RenewerOption {
	return func(r *Renewer) {
		r.unit = d
	}
}

func WithRenewerLogger(l *log.Logger) RenewerOption {
	return func(r *Renewer) {
		r.l = l
	}
}

// WithResetHook registers a function called after each reset.
func WithResetHook(hook func(ctx context.Context)) ResetterOption {
	return func(r *Resetter) {
		r.hooks = append(r.hooks, hook)
	}
}

func WithResetterLogger(l *log.Logger) ResetterOption {
	return func(r *Resetter) {
		r.l = l
	}
}

func WithTransport(rt http.RoundTripper) InterceptorOption {
	return func(i *Interceptor) {
		i.next = rt
	}
}

func WithRenewThreshold(d time.Duration) InterceptorOption {
	return func(i *Interceptor) {
		i.threshold = d
	}
}

// WithRenewTimeout limits a single token exchange. The exchange does not
// end with the context of the request that triggered it.
func WithRenewTimeout(d time.Duration) InterceptorOption {
	return func(i *Interceptor) {
		i.timeout = d
	}
}

func WithRequestLock(l *lock.RequestLock) InterceptorOption {
	return func(i *Interceptor) {
		i.lock = l
	}
}

// WithRenewPath sets the path excluded from interception.
func WithRenewPath(p string) InterceptorOption {
	return func(i *Interceptor) {
		i.renewPath = p
	}
}

func WithInterceptorClock(now func() time.Time) InterceptorOption {
	return func(i *Interceptor) {
		i.now = now
	}
}

func WithInterceptorLogger(l *log.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.l = l
	}
}
