package routes

import (
	"sync"

	"github.com/desertthunder/shelf/internal/session"
)

// State is the guard's view of the session.
type State int

const (
	Checking State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Guard gates a subtree on the session. Each Guard is good for one mount.
type Guard struct {
	mu          sync.Mutex
	oracle      session.Oracle
	nav         Navigator
	state       State
	mounted     bool
	released    bool
	unsubscribe func()
	onChange    func(State)
}

// NewGuard returns a guard in [Checking]. onChange, if non-nil, is called once when the guard settles.
func NewGuard(oracle session.Oracle, nav Navigator, onChange func(State)) *Guard {
	return &Guard{oracle: oracle, nav: nav, onChange: onChange}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Mount subscribes to the oracle and returns the release function. Mounting twice is a no-op.
func (g *Guard) Mount() func() {
	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return g.Unmount
	}
	g.mounted = true
	g.mu.Unlock()

	unsubscribe := g.oracle.Subscribe(g.notify)

	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		unsubscribe()
		return g.Unmount
	}
	g.unsubscribe = unsubscribe
	g.mu.Unlock()
	return g.Unmount
}

// Unmount releases the subscription. Safe to call more than once.
func (g *Guard) Unmount() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Guard) notify(p *session.Principal) {
	g.mu.Lock()
	if g.released || g.state != Checking {
		g.mu.Unlock()
		return
	}
	if p != nil {
		g.state = Authenticated
	} else {
		g.state = Unauthenticated
	}
	state, onChange := g.state, g.onChange
	g.mu.Unlock()

	if state == Unauthenticated && g.nav != nil {
		g.nav.Navigate(Login)
	}
	if onChange != nil {
		onChange(state)
	}
}

// Render picks what to show: loading while checking, child once authenticated, nothing otherwise.
func Render[T any](g *Guard, loading, child func() T) (T, bool) {
	var zero T
	switch g.State() {
	case Checking:
		return loading(), true
	case Authenticated:
		return child(), true
	default:
		return zero, false
	}
}
