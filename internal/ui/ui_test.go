package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/dashboard"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/routes"
	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
	tu "github.com/desertthunder/shelf/internal/testing"
)

type fakeAuth struct {
	*tu.FakeOracle
	err   error
	calls []string
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*session.Principal, error) {
	f.calls = append(f.calls, "signin:"+email)
	return f.establish(email)
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*session.Principal, error) {
	f.calls = append(f.calls, "signup:"+email)
	return f.establish(email)
}

func (f *fakeAuth) establish(email string) (*session.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := &session.Principal{UID: "uid-" + email, Email: email}
	f.Resolve(p)
	return p, nil
}

var ada = &models.User{Name: "Ada", Email: "ada@example.com"}

func newTestModel(t *testing.T, oracle *tu.FakeOracle, backend *tu.FakeBackend) (*Model, *fakeAuth) {
	t.Helper()
	auth := &fakeAuth{FakeOracle: oracle}
	m := NewModel(context.Background(), auth, backend, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Init()
	settle(t, m)
	t.Cleanup(m.Close)
	return m, auth
}

// settle feeds pending router and guard events to the model and runs the dashboard load they trigger.
func settle(t *testing.T, m *Model) {
	t.Helper()
	for {
		select {
		case msg := <-m.events:
			m.Update(msg)
			if msg.kind == MsgGuardSettled && msg.data.(routes.State) == routes.Authenticated && m.board != nil {
				m.Update(loadedMsg(m.board.Load(context.Background())))
			}
		default:
			return
		}
	}
}

// run executes cmd, feeds its message back and settles.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
	settle(t, m)
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func pressRune(m *Model, r rune) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return cmd
}

func TestModelRouting(t *testing.T) {
	t.Run("Signed Out Starts At Login", func(t *testing.T) {
		m, _ := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))

		if m.Route() != routes.Login {
			t.Errorf("expected %s, got %s", routes.Login, m.Route())
		}
		if !strings.Contains(m.View(), "Welcome Back") {
			t.Errorf("expected login view, got:\n%s", m.View())
		}
	})

	t.Run("Restored Session Opens Dashboard", func(t *testing.T) {
		backend := tu.NewFakeBackend(ada, models.Book{ID: "b1", Title: "Dune", Author: "Herbert"})
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), backend)

		if m.Route() != routes.Dashboard {
			t.Fatalf("expected dashboard, got %s", m.Route())
		}
		view := m.View()
		if !strings.Contains(view, "ada@example.com") || !strings.Contains(view, "Dune") {
			t.Errorf("expected header and book, got:\n%s", view)
		}
	})

	t.Run("Guard Shows Loading While Checking", func(t *testing.T) {
		oracle := tu.NewFakeOracle()
		m, _ := newTestModel(t, oracle, tu.NewFakeBackend(ada))

		m.router.Navigate(routes.Dashboard)
		settle(t, m)

		if m.View() != "Loading..." {
			t.Errorf("expected loading placeholder, got %q", m.View())
		}
	})

	t.Run("Guard Redirects Signed Out Visitors", func(t *testing.T) {
		oracle := tu.NewFakeOracle()
		backend := tu.NewFakeBackend(ada)
		m, _ := newTestModel(t, oracle, backend)

		m.router.Navigate(routes.Dashboard)
		settle(t, m)
		oracle.Resolve(nil)
		settle(t, m)

		if m.Route() != routes.Login {
			t.Errorf("expected redirect to login, got %s", m.Route())
		}
		if len(backend.Calls) != 0 {
			t.Errorf("dashboard should never load, got calls %v", backend.Calls)
		}
		if oracle.Subscribers() != 0 {
			t.Errorf("expected guard to unsubscribe, got %d subscribers", oracle.Subscribers())
		}
	})

	t.Run("Toggle Between Login And Signup", func(t *testing.T) {
		m, _ := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))

		press(m, tea.KeyCtrlT)
		settle(t, m)
		if m.Route() != routes.Signup || !strings.Contains(m.View(), "Create Account") {
			t.Errorf("expected signup view, got %s", m.Route())
		}

		press(m, tea.KeyCtrlT)
		settle(t, m)
		if m.Route() != routes.Login {
			t.Errorf("expected login, got %s", m.Route())
		}
	})
}

func TestModelAuth(t *testing.T) {
	t.Run("Login Navigates To Dashboard", func(t *testing.T) {
		m, auth := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))

		typeText(m, "ada@example.com")
		press(m, tea.KeyEnter)
		typeText(m, "secret")
		run(t, m, press(m, tea.KeyEnter))

		if len(auth.calls) != 1 || auth.calls[0] != "signin:ada@example.com" {
			t.Errorf("expected sign in call, got %v", auth.calls)
		}
		if m.Route() != routes.Dashboard {
			t.Errorf("expected dashboard, got %s", m.Route())
		}
		if !strings.Contains(m.View(), "Your library is empty.") {
			t.Errorf("expected empty library, got:\n%s", m.View())
		}
	})

	t.Run("Login Failure Stays On Login", func(t *testing.T) {
		m, auth := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))
		auth.err = errors.New("authentication failed: INVALID_PASSWORD")

		typeText(m, "ada@example.com")
		press(m, tea.KeyTab)
		typeText(m, "wrong")
		run(t, m, press(m, tea.KeyEnter))

		if m.Route() != routes.Login {
			t.Errorf("expected login, got %s", m.Route())
		}
		if !strings.Contains(m.View(), "INVALID_PASSWORD") {
			t.Errorf("expected error in view, got:\n%s", m.View())
		}
	})

	t.Run("Missing Fields Send Nothing", func(t *testing.T) {
		m, auth := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))

		press(m, tea.KeyTab)
		if cmd := press(m, tea.KeyEnter); cmd != nil {
			t.Error("expected no command")
		}
		if len(auth.calls) != 0 || !errors.Is(m.err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument and no calls, got %v %v", m.err, auth.calls)
		}
	})

	t.Run("Signup Requires Matching Passwords", func(t *testing.T) {
		m, auth := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))
		press(m, tea.KeyCtrlT)
		settle(t, m)

		typeText(m, "new@example.com")
		press(m, tea.KeyTab)
		typeText(m, "one")
		press(m, tea.KeyTab)
		typeText(m, "two")
		if cmd := press(m, tea.KeyEnter); cmd != nil {
			t.Error("expected no command on mismatch")
		}
		if len(auth.calls) != 0 || !errors.Is(m.err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput and no calls, got %v %v", m.err, auth.calls)
		}
	})

	t.Run("Signup Signs In", func(t *testing.T) {
		m, auth := newTestModel(t, tu.SignedOut(), tu.NewFakeBackend(ada))
		press(m, tea.KeyCtrlT)
		settle(t, m)

		typeText(m, "new@example.com")
		press(m, tea.KeyTab)
		typeText(m, "pw")
		press(m, tea.KeyTab)
		typeText(m, "pw")
		run(t, m, press(m, tea.KeyEnter))

		if len(auth.calls) != 1 || auth.calls[0] != "signup:new@example.com" {
			t.Errorf("expected sign up call, got %v", auth.calls)
		}
		if m.Route() != routes.Dashboard {
			t.Errorf("expected dashboard, got %s", m.Route())
		}
	})
}

func TestModelDashboard(t *testing.T) {
	seed := func() *tu.FakeBackend {
		return tu.NewFakeBackend(ada,
			models.Book{ID: "b1", Title: "Dune", Author: "Herbert"},
			models.Book{ID: "b2", Title: "Emma", Author: "Austen"},
		)
	}

	t.Run("Add Book", func(t *testing.T) {
		backend := seed()
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), backend)

		pressRune(m, 'a')
		if !m.board.EditorOpen() || !strings.Contains(m.View(), "Add New Book") {
			t.Fatalf("expected create editor, got:\n%s", m.View())
		}

		typeText(m, "Beloved")
		press(m, tea.KeyTab)
		typeText(m, "Morrison")
		run(t, m, press(m, tea.KeyCtrlS))

		if m.board.EditorOpen() {
			t.Error("expected editor closed")
		}
		books := m.board.Books()
		if len(books) != 3 || books[2].Title != "Beloved" {
			t.Errorf("expected appended book, got %+v", books)
		}
		if len(m.bookList.Items()) != 3 {
			t.Errorf("expected list refreshed, got %d items", len(m.bookList.Items()))
		}
	})

	t.Run("Empty Draft Is Rejected", func(t *testing.T) {
		backend := seed()
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), backend)

		pressRune(m, 'a')
		press(m, tea.KeyTab)
		typeText(m, "Y")
		if cmd := press(m, tea.KeyCtrlS); cmd != nil {
			t.Error("expected no command")
		}
		if !errors.Is(m.err, dashboard.ErrInvalidDraft) {
			t.Errorf("expected ErrInvalidDraft, got %v", m.err)
		}
		if backend.CallCount("create") != 0 {
			t.Error("no request should be sent")
		}
	})

	t.Run("Edit Book", func(t *testing.T) {
		backend := seed()
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), backend)

		pressRune(m, 'e')
		if m.board.EditingID() != "b1" || !strings.Contains(m.View(), "Edit Book Details") {
			t.Fatalf("expected edit editor for b1, got %q", m.board.EditingID())
		}

		typeText(m, " Messiah")
		run(t, m, press(m, tea.KeyCtrlS))

		if got := m.board.Books()[0].Title; got != "Dune Messiah" {
			t.Errorf("expected updated title, got %q", got)
		}
	})

	t.Run("Escape Discards Draft", func(t *testing.T) {
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), seed())

		pressRune(m, 'e')
		typeText(m, "zzz")
		press(m, tea.KeyEsc)

		if m.board.EditorOpen() || m.board.Books()[0].Title != "Dune" {
			t.Error("expected editor closed and collection unchanged")
		}
	})

	t.Run("Delete Requires Confirmation", func(t *testing.T) {
		backend := seed()
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), backend)

		pressRune(m, 'd')
		if !strings.Contains(m.View(), dashboard.ConfirmPrompt) {
			t.Fatalf("expected confirm prompt, got:\n%s", m.View())
		}
		pressRune(m, 'n')
		if backend.CallCount("delete") != 0 || len(m.board.Books()) != 2 {
			t.Error("declined delete should send nothing")
		}

		pressRune(m, 'd')
		run(t, m, pressRune(m, 'y'))
		if backend.CallCount("delete:b1") != 1 || len(m.board.Books()) != 1 {
			t.Errorf("expected b1 deleted, got calls %v", backend.Calls)
		}
	})

	t.Run("Declining With Nothing Pending Is Logged", func(t *testing.T) {
		m, _ := newTestModel(t, tu.SignedIn("ada@example.com"), seed())
		logs := &bytes.Buffer{}
		m.logger = shared.NewLogger(logs)
		m.logger.SetLevel(log.DebugLevel)

		m.handleConfirmKeys(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})

		if !strings.Contains(logs.String(), dashboard.ErrNoPendingDelete.Error()) {
			t.Errorf("expected cancel error to be logged, got %q", logs.String())
		}
	})

	t.Run("Logout Returns To Login", func(t *testing.T) {
		oracle := tu.SignedIn("ada@example.com")
		m, _ := newTestModel(t, oracle, seed())

		run(t, m, pressRune(m, 'o'))

		if oracle.SignOutCalls != 1 {
			t.Errorf("expected sign out, got %d", oracle.SignOutCalls)
		}
		if m.Route() != routes.Login {
			t.Errorf("expected login, got %s", m.Route())
		}
		if oracle.Subscribers() != 0 {
			t.Errorf("expected no subscribers after leaving dashboard, got %d", oracle.Subscribers())
		}
	})

	t.Run("Quit Releases Guard", func(t *testing.T) {
		oracle := tu.SignedIn("ada@example.com")
		m, _ := newTestModel(t, oracle, seed())

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		if cmd == nil {
			t.Error("expected quit command")
		}
		if oracle.Subscribers() != 0 {
			t.Errorf("expected guard released, got %d subscribers", oracle.Subscribers())
		}
	})
}
