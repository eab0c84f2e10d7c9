package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/routes"
	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
	"golang.org/x/sync/errgroup"
)

// ConfirmPrompt is shown before a book is deleted.
const ConfirmPrompt = "Are you sure?"

var (
	ErrInvalidDraft    = fmt.Errorf("%w: title and author are required", shared.ErrInvalidInput)
	ErrSubmitInFlight  = fmt.Errorf("submit already in progress")
	ErrEditorClosed    = fmt.Errorf("editor is not open")
	ErrNoPendingDelete = fmt.Errorf("no delete awaiting confirmation")
)

// Backend is the subset of the API client the dashboard needs.
type Backend interface {
	Me(ctx context.Context) (*models.User, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	CreateBook(ctx context.Context, book models.Book) (*models.Book, error)
	UpdateBook(ctx context.Context, id string, book models.Book) (*models.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// Confirmer answers a yes/no prompt.
type Confirmer func(prompt string) bool

// Machine is the dashboard state machine. It is safe for use from multiple goroutines.
type Machine struct {
	mu      sync.Mutex
	backend Backend
	oracle  session.Oracle
	nav     routes.Navigator
	logger  *log.Logger

	loaded bool
	user   *models.User
	books  []models.Book

	editorOpen bool
	draft      models.Book
	editingID  string
	submitting bool

	pendingDelete string
}

// New creates an empty dashboard.
func New(backend Backend, oracle session.Oracle, nav routes.Navigator, logger *log.Logger) *Machine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Machine{
		backend: backend,
		oracle:  oracle,
		nav:     nav,
		logger:  logger,
		books:   []models.Book{},
	}
}

// Load fetches the user profile and the collection. Only the first call does any work.
//
// Both fetches run concurrently and state is updated once both have settled. A failed fetch is
// logged and leaves its part of the state empty; the errors are joined and returned.
func (m *Machine) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return nil
	}
	m.loaded = true
	m.mu.Unlock()

	var (
		g        errgroup.Group
		user     *models.User
		books    []models.Book
		userErr  error
		booksErr error
	)

	g.Go(func() error {
		user, userErr = m.backend.Me(ctx)
		if userErr != nil {
			m.logger.Error("failed to fetch user", "error", userErr)
		}
		return nil
	})
	g.Go(func() error {
		books, booksErr = m.backend.ListBooks(ctx)
		if booksErr != nil {
			m.logger.Error("failed to fetch books", "error", booksErr)
		}
		return nil
	})
	g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if userErr == nil && user != nil {
		m.user = user
	}
	if booksErr == nil {
		m.books = append([]models.Book{}, books...)
	}
	m.logger.Debug("dashboard loaded", "books", len(m.books))
	return errors.Join(userErr, booksErr)
}

// Loaded reports whether Load has run.
func (m *Machine) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// OpenForCreate opens the editor with an empty draft.
func (m *Machine) OpenForCreate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return ErrSubmitInFlight
	}
	m.draft = models.Book{}
	m.editingID = ""
	m.editorOpen = true
	return nil
}

// OpenForEdit opens the editor seeded from book.
func (m *Machine) OpenForEdit(book models.Book) error {
	if !book.Saved() {
		return fmt.Errorf("%w: book has no id", shared.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return ErrSubmitInFlight
	}
	m.draft = models.Book{Title: book.Title, Author: book.Author, Description: book.Description}
	m.editingID = book.ID
	m.editorOpen = true
	return nil
}

// Close hides the editor and discards the draft.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetEditor()
}

// EditDraft replaces the draft fields.
func (m *Machine) EditDraft(title, author, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.editorOpen {
		return ErrEditorClosed
	}
	m.draft.Title = title
	m.draft.Author = author
	m.draft.Description = description
	return nil
}

// Submit sends the draft. With an editing id the matching book is updated in place, otherwise
// the created book is appended. On success the editor closes; on failure it stays open with the
// draft intact.
func (m *Machine) Submit(ctx context.Context) (*models.Book, error) {
	m.mu.Lock()
	if !m.editorOpen {
		m.mu.Unlock()
		return nil, ErrEditorClosed
	}
	if m.submitting {
		m.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	draft, id := m.draft, m.editingID
	if err := models.Validate(draft); err != nil {
		m.mu.Unlock()
		return nil, ErrInvalidDraft
	}
	m.submitting = true
	m.mu.Unlock()

	var (
		saved *models.Book
		err   error
		op    = "create"
	)
	if id != "" {
		op = "update"
		saved, err = m.backend.UpdateBook(ctx, id, draft)
	} else {
		saved, err = m.backend.CreateBook(ctx, draft)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitting = false

	if err != nil {
		m.logger.Error("failed to save book", "op", op, "id", id, "error", err)
		return nil, err
	}

	if id != "" {
		for i := range m.books {
			if m.books[i].ID == id {
				m.books[i] = *saved
				break
			}
		}
	} else {
		m.books = append(m.books, *saved)
	}
	m.resetEditor()

	result := *saved
	return &result, nil
}

// RequestDelete marks id for deletion and returns the confirmation prompt.
func (m *Machine) RequestDelete(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: book id", shared.ErrMissingArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingDelete = id
	return ConfirmPrompt, nil
}

// ConfirmDelete answers the pending prompt. Nothing is sent unless accepted.
func (m *Machine) ConfirmDelete(ctx context.Context, accepted bool) error {
	m.mu.Lock()
	id := m.pendingDelete
	m.pendingDelete = ""
	m.mu.Unlock()

	if id == "" {
		return ErrNoPendingDelete
	}
	if !accepted {
		return nil
	}

	if err := m.backend.DeleteBook(ctx, id); err != nil {
		m.logger.Error("failed to delete book", "op", "delete", "id", id, "error", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = removeByID(m.books, id)
	return nil
}

// Delete asks confirm and deletes id when it answers yes.
func (m *Machine) Delete(ctx context.Context, id string, confirm Confirmer) error {
	prompt, err := m.RequestDelete(id)
	if err != nil {
		return err
	}
	return m.ConfirmDelete(ctx, confirm != nil && confirm(prompt))
}

// SignOut ends the session and navigates to the login route whether or not sign out succeeded.
func (m *Machine) SignOut(ctx context.Context) error {
	var err error
	if m.oracle != nil {
		if err = m.oracle.SignOut(ctx); err != nil {
			m.logger.Warn("sign out failed", "error", err)
		}
	}
	if m.nav != nil {
		m.nav.Navigate(routes.Login)
	}
	return err
}

// User returns a copy of the loaded profile, or nil.
func (m *Machine) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Books returns a copy of the collection.
func (m *Machine) Books() []models.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Book{}, m.books...)
}

// Find returns the cached book with id.
func (m *Machine) Find(id string) (models.Book, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.ID == id {
			return b, true
		}
	}
	return models.Book{}, false
}

func (m *Machine) Draft() models.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

func (m *Machine) EditingID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editingID
}

func (m *Machine) EditorOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editorOpen
}

func (m *Machine) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

// PendingDelete returns the id awaiting confirmation, or "".
func (m *Machine) PendingDelete() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingDelete
}

func (m *Machine) resetEditor() {
	m.editorOpen = false
	m.draft = models.Book{}
	m.editingID = ""
}

func removeByID(books []models.Book, id string) []models.Book {
	out := books[:0]
	for _, b := range books {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
