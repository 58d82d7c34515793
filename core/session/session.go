// Package session resolves the role of an authenticated identity from its User Record.
//
// A Session goes through three states: loading, resolved with a role, and resolved without one.
// Consumers must not treat a loading session as unauthorized.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/user"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseResolved
)

func (p Phase) String() string {
	if p == PhaseResolved {
		return "resolved"
	}
	return "loading"
}

// State is a snapshot of a Session. Role is nil while loading and when resolved to no role.
type State struct {
	Phase Phase
	UID   string
	Role  *user.Role
	User  *user.User
}

func (s State) Loading() bool  { return s.Phase == PhaseLoading }
func (s State) Resolved() bool { return s.Phase == PhaseResolved }

// HasRole reports whether the session is resolved to role.
func (s State) HasRole(role user.Role) bool {
	return s.Resolved() && s.Role != nil && *s.Role == role
}

// RoleName returns the resolved role, or "" if there is none yet.
func (s State) RoleName() string {
	if s.Role == nil {
		return ""
	}
	return string(*s.Role)
}

// Resolver loads User Records. It returns user.ErrNotFound when none exists.
type Resolver interface {
	GetUser(ctx context.Context, uid string) (user.User, error)
}

type Session struct {
	mu        sync.Mutex
	state     State
	seq       int64 // bumped on every transition
	observers map[int]*observer
	nextID    int
}

// observer delivers states in sequence order and drops any older than the last one delivered.
type observer struct {
	mu   sync.Mutex
	fn   func(State)
	seen int64
}

func (o *observer) deliver(state State, seq int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq <= o.seen {
		return
	}
	o.seen = seq
	o.fn(state)
}

// New returns a loading session for the identity uid.
func New(uid string) *Session {
	return &Session{
		state:     State{Phase: PhaseLoading, UID: uid},
		observers: make(map[int]*observer),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Observe calls fn with the current state and then on every transition, until the returned func is called.
// The current state is skipped if a newer one reached fn first. fn must not change the session.
func (s *Session) Observe(fn func(State)) (stop func()) {
	o := &observer{fn: fn, seen: -1}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = o
	current, seq := s.state, s.seq
	s.mu.Unlock()

	o.deliver(current, seq)
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Resolve loads the User Record for the session identity.
// A missing or disabled record resolves to no role. Any other failure also resolves to no role,
// and the error is returned so it can be reported.
func (s *Session) Resolve(ctx context.Context, r Resolver) (State, error) {
	uid := s.State().UID
	if uid == "" {
		return s.transition(State{Phase: PhaseResolved}), nil
	}

	usr, err := r.GetUser(ctx, uid)
	if err != nil {
		state := s.transition(State{Phase: PhaseResolved, UID: uid})
		if errors.Cause(err) == user.ErrNotFound {
			return state, nil
		}
		return state, errors.Wrap(err, "resolving session role")
	}
	if !usr.IsActive() {
		return s.transition(State{Phase: PhaseResolved, UID: uid, User: &usr}), nil
	}
	return s.transition(State{Phase: PhaseResolved, UID: uid, Role: usr.Role.Ptr(), User: &usr}), nil
}

// SignOut resolves the session to no identity and detaches every observer after notifying them.
func (s *Session) SignOut() {
	s.transition(State{Phase: PhaseResolved})

	s.mu.Lock()
	s.observers = make(map[int]*observer)
	s.mu.Unlock()
}

func (s *Session) transition(next State) State {
	s.mu.Lock()
	s.state = next
	s.seq++
	seq := s.seq
	observers := make([]*observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o.deliver(next, seq)
	}
	return next
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
