package session

import (
	"sync"

	"github.com/mystudenthub/backend/core/user"
)

type Outcome int

const (
	// Placeholder renders nothing privileged while the role is unknown.
	Placeholder Outcome = iota
	Render
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "placeholder"
}

type Decision struct {
	Outcome  Outcome
	Location string // set for Redirect
}

// DecideAdmin is the admin-only gate: placeholder while loading,
// render when resolved to admin, redirect to landing when resolved to anything else.
func DecideAdmin(state State, landing string) Decision {
	switch {
	case state.Loading():
		return Decision{Outcome: Placeholder}
	case state.HasRole(user.RoleAdmin):
		return Decision{Outcome: Render}
	default:
		return Decision{Outcome: Redirect, Location: landing}
	}
}

// AdminGate keeps an admin decision in sync with a Session.
type AdminGate struct {
	mu       sync.RWMutex
	decision Decision
	landing  string
	stop     func()
	onChange func(Decision)
}

// NewAdminGate observes s. onChange, if not nil, is called with every new decision.
func NewAdminGate(s *Session, landing string, onChange func(Decision)) *AdminGate {
	g := &AdminGate{landing: landing, onChange: onChange}
	g.stop = s.Observe(g.update)
	return g
}

func (g *AdminGate) update(state State) {
	d := DecideAdmin(state, g.landing)
	g.mu.Lock()
	g.decision = d
	g.mu.Unlock()
	if g.onChange != nil {
		g.onChange(d)
	}
}

func (g *AdminGate) Decision() Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.decision
}

// Close stops observing the session.
func (g *AdminGate) Close() {
	if g.stop != nil {
		g.stop()
	}
}
