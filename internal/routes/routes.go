package routes

import (
	"strings"
	"sync"
)

const (
	Root      = "/"
	Login     = "/login"
	Signup    = "/signup"
	Dashboard = "/dashboard"
)

// Navigator moves the client to another route.
type Navigator interface {
	Navigate(path string)
}

// Guarded reports whether path requires an authenticated principal.
func Guarded(path string) bool {
	return Resolve(path) == Dashboard
}

// Resolve applies redirects. Unknown paths resolve to [Login].
func Resolve(path string) string {
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	switch path {
	case Login, Signup, Dashboard:
		return path
	default:
		return Login
	}
}

// Router holds the current route and reports changes.
type Router struct {
	mu         sync.Mutex
	current    string
	onNavigate func(path string)
}

// NewRouter creates a router at [Root], resolved. onNavigate may be nil.
func NewRouter(onNavigate func(path string)) *Router {
	return &Router{current: Resolve(Root), onNavigate: onNavigate}
}

// Current returns the active route.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate resolves path and makes it current. The callback runs only when the route changes.
func (r *Router) Navigate(path string) {
	target := Resolve(path)

	r.mu.Lock()
	changed := target != r.current
	r.current = target
	fn := r.onNavigate
	r.mu.Unlock()

	if changed && fn != nil {
		fn(target)
	}
}
