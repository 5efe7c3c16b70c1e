package tempparticipant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/model"
)

var (
	ErrNoTempParticipant = errors.New("no temporary participant")
	ErrConversionFailed  = errors.New("temporary participant conversion failed")
	ErrAlreadyConverted  = errors.New("temporary participant already converted")
	ErrConversionRunning = errors.New("temporary participant conversion in progress")
)

type (
	// TempParticipant is an anonymous participant issued by the server.
	// IssuedAt has to be passed unchanged when the participant is assumed.
	TempParticipant struct {
		ID       string
		IssuedAt int64
	}

	API interface {
		RegisterTempParticipant(
			ctx context.Context, instanceID, studyKey string,
		) (*model.TempParticipantInfo, error)
		AssumeTempParticipant(
			ctx context.Context, studyKey, profileID, tempParticipantID string, timestamp int64,
		) error
	}

	Option func(*Registry)

	// Registry holds at most one temporary participant per flow.
	Registry struct {
		mu        sync.Mutex
		api       API
		current   *TempParticipant
		converted map[string]string // temp id -> profile id
		inFlight  map[string]struct{}
		l         *log.Logger
	}
)

func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.l = l
	}
}

func NewRegistry(api API, opts ...Option) *Registry {
	ret := &Registry{
		api:       api,
		converted: make(map[string]string),
		inFlight:  make(map[string]struct{}),
		l:         log.Default().Named("tempparticipant"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (tp TempParticipant) IsEmpty() bool {
	return tp.ID == ""
}

// Register issues a new temporary participant. It replaces a previously
// held one.
//
//nolint:whitespace // editor/linter issue
func (r *Registry) Register(
	ctx context.Context,
	instanceID, studyKey string,
) (TempParticipant, error) {
	info, err := r.api.RegisterTempParticipant(ctx, instanceID, studyKey)
	if err != nil {
		return TempParticipant{}, err
	}
	tp := TempParticipant{ID: info.TemporaryParticipantID, IssuedAt: info.Timestamp}
	r.mu.Lock()
	replaced := r.current != nil
	r.current = &tp
	r.mu.Unlock()
	r.l.Debug("registered temp participant",
		log.String("study", studyKey),
		log.Bool("replaced", replaced))
	return tp, nil
}

func (r *Registry) Current() (TempParticipant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return TempParticipant{}, false
	}
	return *r.current, true
}

// Forget drops the held participant without converting it.
func (r *Registry) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

// Assume converts the held participant into profileID.
func (r *Registry) Assume(ctx context.Context, studyKey, profileID string) error {
	tp, ok := r.Current()
	if !ok {
		return ErrNoTempParticipant
	}
	return r.AssumeWith(ctx, studyKey, profileID, tp)
}

// AssumeWith converts tp into profileID. A participant can only be
// converted once, a second call while the first one is running gets
// ErrConversionRunning. Failures are returned wrapped in ErrConversionFailed.
//
//nolint:whitespace // editor/linter issue
func (r *Registry) AssumeWith(
	ctx context.Context,
	studyKey, profileID string,
	tp TempParticipant,
) error {
	if tp.IsEmpty() {
		return ErrNoTempParticipant
	}
	r.mu.Lock()
	if _, done := r.converted[tp.ID]; done {
		r.mu.Unlock()
		return ErrAlreadyConverted
	}
	if _, running := r.inFlight[tp.ID]; running {
		r.mu.Unlock()
		return ErrConversionRunning
	}
	r.inFlight[tp.ID] = struct{}{}
	r.mu.Unlock()

	err := r.api.AssumeTempParticipant(ctx, studyKey, profileID, tp.ID, tp.IssuedAt)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, tp.ID)
	if err != nil {
		r.l.Warn("could not convert temp participant",
			log.String("study", studyKey),
			log.ErrorField(err))
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	r.converted[tp.ID] = profileID
	if r.current != nil && r.current.ID == tp.ID {
		r.current = nil
	}
	r.l.Info("converted temp participant", log.String("study", studyKey))
	return nil
}
