package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway"
)

var (
	// ErrSessionFetchFailed wraps a failed startup session check. The store
	// logs it and continues as signed out.
	ErrSessionFetchFailed = errors.New("session fetch failed")
	ErrAlreadyInitialized = errors.New("session store already initialized")
	ErrClosed             = errors.New("session store closed")
)

type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store caches who is currently signed in. The auth service stays the source
// of truth: the cached principal is only ever replaced by the startup fetch or
// by a session-change notification.
type Store struct {
	auth   gateway.AuthService
	logger *logrus.Logger

	mu          sync.RWMutex
	principal   *entity.Principal
	loading     bool
	initialized bool
	closed      bool
	notified    bool // a notification arrived after subscribing
	unsub       gateway.Unsubscribe
	ready       chan struct{}

	observers map[int]gateway.SessionListener
	nextObs   int
}

func NewStore(auth gateway.AuthService, logger *logrus.Logger) *Store {
	return &Store{
		auth:      auth,
		logger:    logger,
		loading:   true,
		ready:     make(chan struct{}),
		observers: map[int]gateway.SessionListener{},
	}
}

// Initialize subscribes to session changes and then resolves the startup
// session. It blocks until the startup check returns; a failed check leaves
// the store signed out.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.mu.Unlock()

	unsub := s.auth.OnSessionChange(s.apply)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsub()
		return ErrClosed
	}
	s.unsub = unsub
	s.mu.Unlock()

	p, err := s.auth.GetCurrentSession(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(fmt.Errorf("%w: %v", ErrSessionFetchFailed, err)).Warn("continuing without a session")
		}
		p = nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	// A notification received while the fetch was in flight is newer.
	if !s.notified {
		s.principal = clonePrincipal(p)
	}
	s.loading = false
	close(s.ready)
	current := clonePrincipal(s.principal)
	observers := s.snapshotObservers()
	s.mu.Unlock()

	notify(observers, current)
	return nil
}

func (s *Store) apply(p *entity.Principal) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.notified = true
	s.principal = clonePrincipal(p)
	current := clonePrincipal(s.principal)
	observers := s.snapshotObservers()
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.WithField("authenticated", current != nil).Debug("session changed")
	}
	notify(observers, current)
}

// Principal returns a copy of the cached principal, or nil.
func (s *Store) Principal() *entity.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePrincipal(s.principal)
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.loading:
		return StateInitializing
	case s.principal != nil:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// Ready is closed once the startup check has resolved or the store is closed.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Watch registers fn to run after every change of the cached principal.
// Callbacks run outside the store lock.
func (s *Store) Watch(fn gateway.SessionListener) gateway.Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Close cancels the subscription. Later notifications leave the store
// untouched. A startup check still pending is abandoned and Ready is released.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.loading {
		s.loading = false
		close(s.ready)
	}
	unsub := s.unsub
	s.unsub = nil
	s.observers = map[int]gateway.SessionListener{}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Store) snapshotObservers() []gateway.SessionListener {
	out := make([]gateway.SessionListener, 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}

func notify(observers []gateway.SessionListener, p *entity.Principal) {
	for _, fn := range observers {
		fn(clonePrincipal(p))
	}
}

func clonePrincipal(p *entity.Principal) *entity.Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
