package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/shelf/internal/identity"
	"github.com/desertthunder/shelf/internal/repositories"
	"github.com/desertthunder/shelf/internal/shared"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	cred     *identity.Credential
	err      error
	tokenErr error
	calls    []string
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Credential, error) {
	f.calls = append(f.calls, "signin:"+email)
	return f.cred, f.err
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string) (*identity.Credential, error) {
	f.calls = append(f.calls, "signup:"+email)
	return f.cred, f.err
}

func (f *fakeProvider) TokenSource(ctx context.Context, cred *identity.Credential) oauth2.TokenSource {
	if f.tokenErr != nil {
		return errTokenSource{f.tokenErr}
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token-for-" + cred.UID})
}

type errTokenSource struct{ err error }

func (e errTokenSource) Token() (*oauth2.Token, error) { return nil, e.err }

type memoryStore struct {
	mu      sync.Mutex
	current *repositories.StoredSession
	err     error
}

func (m *memoryStore) Save(s *repositories.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	copied := *s
	m.current = &copied
	return nil
}

func (m *memoryStore) Current() (*repositories.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.current == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return m.current, nil
}

func (m *memoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return m.err
}

type recorder struct {
	mu    sync.Mutex
	calls []*Principal
}

func (r *recorder) listen(p *Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() *Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func adaCredential() *identity.Credential {
	return &identity.Credential{UID: "uid-1", Email: "ada@example.com", IDToken: "id", RefreshToken: "rt"}
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Subscribe before Restore waits for resolution", func(t *testing.T) {
		s := New(&fakeProvider{}, &memoryStore{}, nil)
		rec := &recorder{}
		s.Subscribe(rec.listen)

		if rec.count() != 0 {
			t.Fatalf("expected no call before resolution, got %d", rec.count())
		}
		if s.Resolved() {
			t.Error("session should not be resolved yet")
		}

		if err := s.Restore(ctx); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if rec.count() != 1 || rec.last() != nil {
			t.Errorf("expected one nil notification, got %d calls", rec.count())
		}
	})

	t.Run("Subscribe after resolution is called immediately", func(t *testing.T) {
		store := &memoryStore{current: &repositories.StoredSession{UID: "uid-1", Email: "ada@example.com", RefreshToken: "rt"}}
		s := New(&fakeProvider{}, store, nil)
		if err := s.Restore(ctx); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}

		rec := &recorder{}
		s.Subscribe(rec.listen)
		if rec.count() != 1 {
			t.Fatalf("expected immediate notification, got %d", rec.count())
		}
		if rec.last() == nil || rec.last().Email != "ada@example.com" {
			t.Errorf("expected restored principal, got %+v", rec.last())
		}
	})

	t.Run("unsubscribe stops notifications and is idempotent", func(t *testing.T) {
		p := &fakeProvider{cred: adaCredential()}
		s := New(p, &memoryStore{}, nil)
		s.Restore(ctx)

		rec := &recorder{}
		unsubscribe := s.Subscribe(rec.listen)
		unsubscribe()
		unsubscribe()

		if _, err := s.SignIn(ctx, "ada@example.com", "pw"); err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if rec.count() != 1 {
			t.Errorf("expected only the initial notification, got %d", rec.count())
		}
	})

	t.Run("SignIn persists and notifies", func(t *testing.T) {
		store := &memoryStore{}
		s := New(&fakeProvider{cred: adaCredential()}, store, nil)
		s.Restore(ctx)
		rec := &recorder{}
		s.Subscribe(rec.listen)

		principal, err := s.SignIn(ctx, "ada@example.com", "pw")
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if principal.UID != "uid-1" {
			t.Errorf("expected uid-1, got %s", principal.UID)
		}
		if s.Current() == nil {
			t.Error("expected current principal")
		}
		if rec.last() == nil || rec.last().UID != "uid-1" {
			t.Errorf("expected notification with principal, got %+v", rec.last())
		}
		if store.current == nil || store.current.RefreshToken != "rt" {
			t.Errorf("expected refresh token to be stored, got %+v", store.current)
		}
	})

	t.Run("SignIn failure leaves state unchanged", func(t *testing.T) {
		s := New(&fakeProvider{err: shared.ErrAuthFailed}, &memoryStore{}, nil)
		s.Restore(ctx)
		rec := &recorder{}
		s.Subscribe(rec.listen)

		if _, err := s.SignIn(ctx, "ada@example.com", "bad"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if s.Current() != nil {
			t.Error("expected no principal")
		}
		if rec.count() != 1 {
			t.Errorf("expected no extra notification, got %d", rec.count())
		}
	})

	t.Run("SignUp signs the new account in", func(t *testing.T) {
		p := &fakeProvider{cred: adaCredential()}
		s := New(p, nil, nil)
		s.Restore(ctx)

		if _, err := s.SignUp(ctx, "ada@example.com", "pw"); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if len(p.calls) != 1 || p.calls[0] != "signup:ada@example.com" {
			t.Errorf("expected sign up call, got %v", p.calls)
		}
		if s.Current() == nil {
			t.Error("expected principal after sign up")
		}
	})

	t.Run("SignIn succeeds when the store fails", func(t *testing.T) {
		s := New(&fakeProvider{cred: adaCredential()}, &memoryStore{err: errors.New("disk full")}, nil)
		s.set(nil, nil)

		if _, err := s.SignIn(ctx, "ada@example.com", "pw"); err != nil {
			t.Fatalf("SignIn should not fail on store errors: %v", err)
		}
		if s.Current() == nil {
			t.Error("expected principal")
		}
	})

	t.Run("SignOut clears store and notifies nil", func(t *testing.T) {
		store := &memoryStore{}
		s := New(&fakeProvider{cred: adaCredential()}, store, nil)
		s.Restore(ctx)
		s.SignIn(ctx, "ada@example.com", "pw")
		rec := &recorder{}
		s.Subscribe(rec.listen)

		if err := s.SignOut(ctx); err != nil {
			t.Fatalf("SignOut failed: %v", err)
		}
		if s.Current() != nil {
			t.Error("expected no principal after sign out")
		}
		if rec.last() != nil {
			t.Error("expected nil notification")
		}
		if store.current != nil {
			t.Error("expected store to be cleared")
		}
	})

	t.Run("Restore store error resolves signed out", func(t *testing.T) {
		s := New(&fakeProvider{}, &memoryStore{err: errors.New("corrupt")}, nil)

		if err := s.Restore(ctx); err == nil {
			t.Error("expected restore error")
		}
		if !s.Resolved() || s.Current() != nil {
			t.Error("expected resolved and signed out")
		}
	})
}

func TestSessionLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("SetLogger redirects session logs", func(t *testing.T) {
		before, after := &bytes.Buffer{}, &bytes.Buffer{}
		s := New(&fakeProvider{cred: adaCredential()}, &memoryStore{err: errors.New("disk full")}, shared.NewLogger(before))
		s.SetLogger(shared.NewLogger(after))

		if _, err := s.SignIn(ctx, "ada@example.com", "pw"); err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if before.Len() != 0 {
			t.Errorf("expected nothing on the original logger, got %q", before.String())
		}
		for _, want := range []string{"failed to persist session", "signed in"} {
			if !strings.Contains(after.String(), want) {
				t.Errorf("expected %q in redirected log, got %q", want, after.String())
			}
		}
	})
}

func TestSubscriberOrdering(t *testing.T) {
	t.Run("stale delivery is dropped", func(t *testing.T) {
		rec := &recorder{}
		sub := &subscriber{fn: rec.listen}
		newer := &Principal{UID: "uid-2"}

		sub.deliver(2, newer)
		sub.deliver(1, &Principal{UID: "uid-1"})
		sub.deliver(2, newer)

		if rec.count() != 1 || rec.last() != newer {
			t.Errorf("expected only the newest delivery, got %d calls", rec.count())
		}
	})

	t.Run("listener that signs out is not re-entered", func(t *testing.T) {
		ctx := context.Background()
		s := New(&fakeProvider{cred: adaCredential()}, nil, shared.NewLogger(io.Discard))
		s.SignIn(ctx, "ada@example.com", "pw")

		var seen []*Principal
		depth := 0
		s.Subscribe(func(p *Principal) {
			depth++
			defer func() { depth-- }()
			if depth > 1 {
				t.Error("listener re-entered")
			}
			seen = append(seen, p)
			if p != nil {
				s.SignOut(ctx)
			}
		})

		if len(seen) != 2 || seen[0] == nil || seen[1] != nil {
			t.Errorf("expected principal then nil, got %v", seen)
		}
	})

	t.Run("concurrent subscribe and sign out settle on signed out", func(t *testing.T) {
		ctx := context.Background()
		for range 200 {
			s := New(&fakeProvider{cred: adaCredential()}, nil, shared.NewLogger(io.Discard))
			s.SignIn(ctx, "ada@example.com", "pw")

			rec := &recorder{}
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				s.Subscribe(rec.listen)
			}()
			go func() {
				defer wg.Done()
				s.SignOut(ctx)
			}()
			wg.Wait()

			if rec.count() > 0 && rec.last() != nil {
				t.Fatal("listener saw a stale principal after sign out")
			}
		}
	})
}

func TestSessionToken(t *testing.T) {
	ctx := context.Background()

	t.Run("signed out", func(t *testing.T) {
		s := New(&fakeProvider{}, nil, nil)
		s.Restore(ctx)

		if _, err := s.Token(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		s := New(&fakeProvider{cred: adaCredential()}, nil, nil)
		s.SignIn(ctx, "ada@example.com", "pw")

		token, err := s.Token(ctx)
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if token != "token-for-uid-1" {
			t.Errorf("unexpected token %s", token)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		s := New(&fakeProvider{cred: adaCredential(), tokenErr: errors.New("refresh rejected")}, nil, nil)
		s.SignIn(ctx, "ada@example.com", "pw")

		if _, err := s.Token(ctx); !errors.Is(err, shared.ErrAuthUnavailable) {
			t.Errorf("expected ErrAuthUnavailable, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := New(&fakeProvider{cred: adaCredential()}, nil, nil)
		s.SignIn(ctx, "ada@example.com", "pw")

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := s.Token(cancelled); !errors.Is(err, shared.ErrAuthUnavailable) {
			t.Errorf("expected ErrAuthUnavailable, got %v", err)
		}
	})
}
