package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/lock"
	"github.com/mpapenbr/participant-core-go/pkg/session"
)

const (
	RequestIDHeader = "X-Request-ID"
	// upper bound of a single token exchange
	DefaultRenewTimeout = 30 * time.Second
)

var ErrRenewalPending = errors.New("token renewal still pending")

// a waiter that still sees an expiring token after the lock resolved tries
// to renew by itself, but only this often
const maxRenewAttempts = 2

// Interceptor is a http.RoundTripper that keeps the access token fresh and
// attaches it to every request except the renewal request itself.
type Interceptor struct {
	next      http.RoundTripper
	store     *session.Store
	header    *DefaultHeader
	renewer   *Renewer
	resetter  *Resetter
	lock      *lock.RequestLock
	threshold time.Duration
	timeout   time.Duration
	renewPath string
	now       func() time.Time
	l         *log.Logger
}

var _ http.RoundTripper = (*Interceptor)(nil)

//nolint:whitespace // editor/linter issue
func NewInterceptor(
	store *session.Store,
	header *DefaultHeader,
	renewer *Renewer,
	resetter *Resetter,
	opts ...InterceptorOption,
) *Interceptor {
	ret := &Interceptor{
		next:      http.DefaultTransport,
		store:     store,
		header:    header,
		renewer:   renewer,
		resetter:  resetter,
		threshold: session.DefaultRenewThreshold,
		timeout:   DefaultRenewTimeout,
		renewPath: DefaultRenewPath,
		now:       time.Now,
		l:         log.Default().Named("client.auth"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.lock == nil {
		ret.lock = lock.New(lock.WithLogger(ret.l))
	}
	return ret
}

func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if i.isRenewRequest(req) {
		return i.next.RoundTrip(req)
	}
	if err := i.ensureFresh(req.Context()); err != nil {
		closeBody(req)
		return nil, err
	}

	out := req.Clone(req.Context())
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if sess, ok := i.store.Current(); ok {
		if i.header.AccessToken() != sess.AccessToken {
			// restored sessions have no cached header yet
			i.header.Set(sess)
		}
		i.header.Apply(out)
	}
	return i.next.RoundTrip(out)
}

// ensureFresh renews the token if it is about to expire. Only one renewal
// runs at a time, concurrent callers wait for its outcome.
func (i *Interceptor) ensureFresh(ctx context.Context) error {
	sess, ok := i.store.Current()
	if !ok {
		return nil
	}
	if !sess.NeedsRenewal(i.now(), i.threshold) {
		return nil
	}
	for range maxRenewAttempts {
		if i.lock.IsLocked() {
			i.l.Debug("waiting for running renewal", log.Int("waiting", i.lock.Waiting()+1))
		}
		outcome := i.lock.Acquire(ctx)
		switch outcome {
		case lock.Acquired:
			_, err := i.renewLocked(ctx, false)
			return err
		case lock.Canceled:
			return ctx.Err()
		case lock.Released, lock.TimedOut:
			sess, ok := i.store.Current()
			if !ok {
				// the renewal we waited for failed and reset the session
				return session.ErrNoValidSession
			}
			if !sess.NeedsRenewal(i.now(), i.threshold) {
				return nil
			}
			i.l.Debug("token still expiring after waiting",
				log.String("outcome", outcome.String()))
		}
	}
	return nil
}

// Renew renews the token regardless of its expiry and returns the new
// access token. If another renewal is running, its result is used instead.
func (i *Interceptor) Renew(ctx context.Context) (string, error) {
	for range maxRenewAttempts {
		switch i.lock.Acquire(ctx) {
		case lock.Acquired:
			return i.renewLocked(ctx, true)
		case lock.Canceled:
			return "", ctx.Err()
		case lock.Released:
			sess, ok := i.store.Current()
			if !ok {
				return "", session.ErrNoValidSession
			}
			return sess.AccessToken, nil
		case lock.TimedOut:
			// the lock was forcibly unlocked, try to take it
		}
	}
	return "", ErrRenewalPending
}

func (i *Interceptor) renewLocked(ctx context.Context, force bool) (string, error) {
	defer i.lock.Release()

	sess, ok := i.store.Current()
	if !ok {
		return "", session.ErrNoValidSession
	}
	// someone else may have renewed between our check and acquiring the lock
	if !force && !sess.NeedsRenewal(i.now(), i.threshold) {
		return sess.AccessToken, nil
	}
	// the exchange is not bound to the request that triggered it. A caller
	// giving up must not cost the session its refresh token.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.timeout)
	defer cancel()
	token, err := i.renewer.Renew(rctx)
	if err != nil {
		i.l.Info("resetting session after failed renewal", log.ErrorField(err))
		i.resetter.Reset(rctx)
		return "", err
	}
	return token, nil
}

func (i *Interceptor) isRenewRequest(req *http.Request) bool {
	return req.URL != nil && strings.HasSuffix(req.URL.Path, i.renewPath)
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
