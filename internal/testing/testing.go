// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
)

// FakeOracle is a test double for [session.Oracle] whose state is driven by the test.
type FakeOracle struct {
	mu          sync.Mutex
	principal   *session.Principal
	resolved    bool
	listeners   map[int]session.Listener
	nextID      int
	Unsubscribe int

	TokenValue string
	TokenErr   error
	TokenCalls int

	SignOutErr   error
	SignOutCalls int
}

// NewFakeOracle returns an unresolved oracle. Call [FakeOracle.Resolve] to settle it.
func NewFakeOracle() *FakeOracle {
	return &FakeOracle{listeners: make(map[int]session.Listener), TokenValue: "test-token"}
}

// SignedIn returns a resolved oracle for the given email.
func SignedIn(email string) *FakeOracle {
	o := NewFakeOracle()
	o.Resolve(&session.Principal{UID: "uid-" + email, Email: email})
	return o
}

// SignedOut returns a resolved oracle with no principal.
func SignedOut() *FakeOracle {
	o := NewFakeOracle()
	o.Resolve(nil)
	return o
}

func (o *FakeOracle) Subscribe(fn session.Listener) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	resolved, current := o.resolved, o.principal
	o.mu.Unlock()

	if resolved {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.Unsubscribe++
			o.mu.Unlock()
		})
	}
}

func (o *FakeOracle) Current() *session.Principal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.principal
}

func (o *FakeOracle) Token(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.TokenCalls++
	if o.principal == nil {
		return "", shared.ErrNotAuthenticated
	}
	if o.TokenErr != nil {
		return "", o.TokenErr
	}
	return o.TokenValue, nil
}

func (o *FakeOracle) SignOut(ctx context.Context) error {
	o.mu.Lock()
	o.SignOutCalls++
	err := o.SignOutErr
	o.mu.Unlock()

	o.Resolve(nil)
	return err
}

// Resolve sets the principal and notifies subscribers.
func (o *FakeOracle) Resolve(p *session.Principal) {
	o.mu.Lock()
	o.principal = p
	o.resolved = true
	listeners := make([]session.Listener, 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
}

// Subscribers returns the number of live subscriptions.
func (o *FakeOracle) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners)
}

// FakeBackend is an in-memory book backend that records calls and can be told to fail.
type FakeBackend struct {
	mu     sync.Mutex
	user   *models.User
	books  []models.Book
	nextID int
	Calls  []string

	MeErr     error
	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error

	// Block, when set, is received from before each mutation returns.
	Block chan struct{}
}

// NewFakeBackend seeds the backend with user and books.
func NewFakeBackend(user *models.User, books ...models.Book) *FakeBackend {
	b := &FakeBackend{user: user, books: append([]models.Book(nil), books...), nextID: len(books)}
	return b
}

func (b *FakeBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, call)
}

func (b *FakeBackend) wait() {
	if b.Block != nil {
		<-b.Block
	}
}

// CallCount returns how many recorded calls start with op.
func (b *FakeBackend) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.Calls {
		if len(c) >= len(op) && c[:len(op)] == op {
			n++
		}
	}
	return n
}

func (b *FakeBackend) Me(ctx context.Context) (*models.User, error) {
	b.record("me")
	if b.MeErr != nil {
		return nil, b.MeErr
	}
	if b.user == nil {
		return nil, shared.ErrNotFound
	}
	u := *b.user
	return &u, nil
}

func (b *FakeBackend) ListBooks(ctx context.Context) ([]models.Book, error) {
	b.record("list")
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	return b.Snapshot(), nil
}

func (b *FakeBackend) CreateBook(ctx context.Context, book models.Book) (*models.Book, error) {
	b.record("create")
	b.wait()
	if b.CreateErr != nil {
		return nil, b.CreateErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	book.ID = "book-" + strconv.Itoa(b.nextID)
	b.books = append(b.books, book)
	return &book, nil
}

func (b *FakeBackend) UpdateBook(ctx context.Context, id string, book models.Book) (*models.Book, error) {
	b.record("update:" + id)
	b.wait()
	if b.UpdateErr != nil {
		return nil, b.UpdateErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.books {
		if b.books[i].ID == id {
			book.ID = id
			b.books[i] = book
			return &book, nil
		}
	}
	return nil, fmt.Errorf("%w: book %s", shared.ErrNotFound, id)
}

func (b *FakeBackend) DeleteBook(ctx context.Context, id string) error {
	b.record("delete:" + id)
	b.wait()
	if b.DeleteErr != nil {
		return b.DeleteErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.books {
		if b.books[i].ID == id {
			b.books = append(b.books[:i], b.books[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: book %s", shared.ErrNotFound, id)
}

// Snapshot returns a copy of the stored books.
func (b *FakeBackend) Snapshot() []models.Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Book{}, b.books...)
}

// SortedIDs returns the stored ids in lexical order.
func (b *FakeBackend) SortedIDs() []string {
	books := b.Snapshot()
	ids := make([]string, 0, len(books))
	for _, book := range books {
		ids = append(ids, book.ID)
	}
	sort.Strings(ids)
	return ids
}

// FakeNavigator records navigation targets.
type FakeNavigator struct {
	mu    sync.Mutex
	Paths []string
}

func (n *FakeNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Paths = append(n.Paths, path)
}

// Last returns the most recent navigation target, or "".
func (n *FakeNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Paths) == 0 {
		return ""
	}
	return n.Paths[len(n.Paths)-1]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	Requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
