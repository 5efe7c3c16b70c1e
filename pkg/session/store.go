package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/session/persist"
	"github.com/mpapenbr/participant-core-go/pkg/utils/broadcast"
)

// login state changes are rare, subscribers get more time than the default
const eventSendTimeout = 500 * time.Millisecond

type (
	// Snapshot is the persisted client state.
	//
	//nolint:tagliatelle // persisted format
	Snapshot struct {
		Session           AuthSession `json:"session"`
		SelectedProfileID string      `json:"selectedProfileId,omitempty"`
		SavedAt           time.Time   `json:"savedAt"`
	}

	// Store holds the process wide AuthSession.
	// Only the renewer, the resetter and login write to it.
	Store struct {
		mu              sync.RWMutex
		current         AuthSession
		selectedProfile string
		cfg             *Config
		events          chan Event
		bcst            broadcast.BroadcastServer[Event]
		log             *log.Logger
	}
)

func NewStore(opts ...Option) *Store {
	cfg := &Config{
		Now: time.Now,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().Named("session.store")
	}
	events := make(chan Event, 16)
	return &Store{
		cfg:    cfg,
		events: events,
		bcst: broadcast.NewBroadcastServer("session", events,
			broadcast.WithLogger[Event](cfg.Logger),
			broadcast.WithSendTimeout[Event](eventSendTimeout)),
		log: cfg.Logger,
	}
}

func (s *Store) Current() (AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, !s.current.IsEmpty()
}

func (s *Store) IsLoggedIn() bool {
	_, ok := s.Current()
	return ok
}

// Set replaces the token pair. Persisting errors are logged only.
func (s *Store) Set(ctx context.Context, sess AuthSession) {
	s.mu.Lock()
	wasLoggedIn := !s.current.IsEmpty()
	s.current = sess
	snap := s.snapshotLocked()
	remember := s.cfg.Remember
	s.mu.Unlock()

	if remember {
		s.persist(ctx, snap)
	}
	kind := EventRenewed
	if !wasLoggedIn {
		kind = EventLogin
	}
	s.publish(kind, !sess.IsEmpty())
}

// Clear empties the session, the selected profile and any persisted
// snapshot. It is safe to call repeatedly.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	wasLoggedIn := !s.current.IsEmpty()
	s.current = AuthSession{}
	s.selectedProfile = ""
	s.mu.Unlock()

	if s.cfg.Persister != nil {
		if err := s.cfg.Persister.Clear(ctx); err != nil {
			s.log.Warn("could not clear persisted snapshot", log.ErrorField(err))
		}
	}
	if wasLoggedIn {
		s.publish(EventCleared, false)
	}
}

func (s *Store) SelectedProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedProfile
}

func (s *Store) SetSelectedProfile(ctx context.Context, profileID string) {
	s.mu.Lock()
	s.selectedProfile = profileID
	snap := s.snapshotLocked()
	remember := s.cfg.Remember && !s.current.IsEmpty()
	s.mu.Unlock()
	if remember {
		s.persist(ctx, snap)
	}
}

func (s *Store) SetRemember(b bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Remember = b
}

// Restore loads a persisted snapshot into the store. A restored store keeps
// persisting its updates.
func (s *Store) Restore(ctx context.Context) error {
	if s.cfg.Persister == nil {
		return ErrSnapshotNotFound
	}
	data, err := s.cfg.Persister.Load(ctx)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return ErrSnapshotNotFound
		}
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Session.IsEmpty() {
		return ErrSnapshotNotFound
	}
	s.mu.Lock()
	s.current = snap.Session
	s.selectedProfile = snap.SelectedProfileID
	s.cfg.Remember = true
	s.mu.Unlock()
	s.log.Debug("restored snapshot",
		log.Time("savedAt", snap.SavedAt),
		log.Time("expiresAt", snap.Session.ExpiresAt))
	s.publish(EventLogin, true)
	return nil
}

// Subscribe returns a channel receiving login state events.
func (s *Store) Subscribe() <-chan Event {
	return s.bcst.Subscribe()
}

func (s *Store) Unsubscribe(ch <-chan Event) {
	s.bcst.CancelSubscription(ch)
}

func (s *Store) Close() {
	s.bcst.Close()
}

// must be called with s.mu held
func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Session:           s.current,
		SelectedProfileID: s.selectedProfile,
		SavedAt:           s.cfg.Now(),
	}
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	if s.cfg.Persister == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("could not encode snapshot", log.ErrorField(err))
		return
	}
	if err := s.cfg.Persister.Save(ctx, data); err != nil {
		s.log.Warn("could not persist snapshot", log.ErrorField(err))
	}
}

func (s *Store) publish(kind EventKind, loggedIn bool) {
	select {
	case s.events <- Event{Kind: kind, LoggedIn: loggedIn, At: s.cfg.Now()}:
	default:
		s.log.Debug("dropping session event", log.String("kind", kind.String()))
	}
}
