package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/identity"
	"github.com/desertthunder/shelf/internal/repositories"
	"github.com/desertthunder/shelf/internal/shared"
	"golang.org/x/oauth2"
)

// Principal is the signed-in identity.
type Principal struct {
	UID   string
	Email string
	Name  string
}

// Listener receives the current principal, or nil when signed out.
type Listener func(*Principal)

// Oracle is the capability consumed by the guard, the request client and the dashboard.
type Oracle interface {
	Subscribe(fn Listener) (unsubscribe func())
	Current() *Principal
	Token(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// Provider is the identity provider surface a [Session] needs.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*identity.Credential, error)
	SignUp(ctx context.Context, email, password string) (*identity.Credential, error)
	TokenSource(ctx context.Context, cred *identity.Credential) oauth2.TokenSource
}

// Store persists the session between runs.
type Store interface {
	Save(s *repositories.StoredSession) error
	Current() (*repositories.StoredSession, error)
	Clear() error
}

var _ Oracle = (*Session)(nil)

// Session implements [Oracle] on top of an identity [Provider] and a credential [Store].
type Session struct {
	mu        sync.Mutex
	provider  Provider
	store     Store
	logger    *log.Logger
	principal *Principal
	tokens    oauth2.TokenSource
	resolved  bool
	version   uint64
	listeners map[int]*subscriber
	nextID    int
}

// subscriber serializes deliveries to one listener. Deliveries older than the last
// accepted one are ignored, and the listener's final call always carries the newest
// value. A delivery that arrives while the listener is running is queued, never nested.
type subscriber struct {
	fn       Listener
	mu       sync.Mutex
	seen     uint64
	latest   *Principal
	pending  bool
	draining bool
}

func (sub *subscriber) deliver(version uint64, p *Principal) {
	sub.mu.Lock()
	if version <= sub.seen {
		sub.mu.Unlock()
		return
	}
	sub.seen = version
	sub.latest = p
	sub.pending = true
	if sub.draining {
		sub.mu.Unlock()
		return
	}
	sub.draining = true

	for sub.pending {
		current := sub.latest
		sub.pending = false
		sub.mu.Unlock()
		sub.fn(current)
		sub.mu.Lock()
	}
	sub.draining = false
	sub.mu.Unlock()
}

// New creates an unresolved [Session]. store may be nil, in which case nothing survives the process.
func New(provider Provider, store Store, logger *log.Logger) *Session {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Session{
		provider:  provider,
		store:     store,
		logger:    logger,
		listeners: make(map[int]*subscriber),
	}
}

// Subscribe registers fn and returns a function that removes it. The returned function is safe to call more than once.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	sub := &subscriber{fn: fn}
	s.listeners[id] = sub
	resolved, current, version := s.resolved, s.principal, s.version
	s.mu.Unlock()

	if resolved {
		sub.deliver(version, current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Current returns the signed-in principal, or nil.
func (s *Session) Current() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// SetLogger replaces the session's logger.
func (s *Session) SetLogger(l *log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

func (s *Session) log() *log.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// Resolved reports whether the initial session state is known.
func (s *Session) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Token mints a bearer credential for the current principal.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	principal, tokens := s.principal, s.tokens
	s.mu.Unlock()

	if principal == nil || tokens == nil {
		return "", shared.ErrNotAuthenticated
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAuthUnavailable, err)
	}

	tok, err := tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAuthUnavailable, err)
	}
	return identity.BearerToken(tok), nil
}

// Restore resolves the session from the store. A missing session resolves to signed out.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		s.set(nil, nil)
		return nil
	}

	stored, err := s.store.Current()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		s.set(nil, nil)
		return nil
	}
	if err != nil {
		s.set(nil, nil)
		return fmt.Errorf("failed to restore session: %w", err)
	}

	cred := &identity.Credential{
		UID:          stored.UID,
		Email:        stored.Email,
		Name:         stored.Name,
		RefreshToken: stored.RefreshToken,
	}
	s.log().Debug("restored session", "uid", stored.UID)
	s.set(principalOf(cred), s.provider.TokenSource(context.WithoutCancel(ctx), cred))
	return nil
}

// SignIn authenticates with email and password and makes the result the current principal.
func (s *Session) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	cred, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, cred)
}

// SignUp creates an account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password string) (*Principal, error) {
	cred, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, cred)
}

// SignOut forgets the current principal locally and in the store.
func (s *Session) SignOut(ctx context.Context) error {
	var err error
	if s.store != nil {
		if clearErr := s.store.Clear(); clearErr != nil {
			err = fmt.Errorf("failed to clear stored session: %w", clearErr)
		}
	}
	s.set(nil, nil)
	return err
}

func (s *Session) establish(ctx context.Context, cred *identity.Credential) (*Principal, error) {
	if s.store != nil {
		stored := &repositories.StoredSession{
			UID:          cred.UID,
			Email:        cred.Email,
			Name:         cred.Name,
			RefreshToken: cred.RefreshToken,
		}
		if err := s.store.Save(stored); err != nil {
			s.log().Warn("failed to persist session", "error", err)
		}
	}

	principal := principalOf(cred)
	s.set(principal, s.provider.TokenSource(context.WithoutCancel(ctx), cred))
	s.log().Info("signed in", "email", principal.Email)
	return principal, nil
}

// set replaces the state and notifies listeners outside the lock.
func (s *Session) set(principal *Principal, tokens oauth2.TokenSource) {
	s.mu.Lock()
	s.principal = principal
	s.tokens = tokens
	s.resolved = true
	s.version++
	version := s.version
	subs := make([]*subscriber, 0, len(s.listeners))
	for _, sub := range s.listeners {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(version, principal)
	}
}

func principalOf(cred *identity.Credential) *Principal {
	return &Principal{UID: cred.UID, Email: cred.Email, Name: cred.Name}
}
