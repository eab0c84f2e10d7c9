package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/dashboard"
	"github.com/desertthunder/shelf/internal/formatter"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/routes"
	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
)

// Authenticator is the session surface the TUI drives.
type Authenticator interface {
	session.Oracle
	SignIn(ctx context.Context, email, password string) (*session.Principal, error)
	SignUp(ctx context.Context, email, password string) (*session.Principal, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	auth    Authenticator
	backend dashboard.Backend
	logger  *log.Logger

	router       *routes.Router
	route        string
	guard        *routes.Guard
	releaseGuard func()
	board        *dashboard.Machine
	events       chan Msg

	form     authForm
	editor   editor
	bookList list.Model
	busy     bool
	status   string
	err      error

	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, auth Authenticator, backend dashboard.Backend, logger *log.Logger) *Model {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	m := &Model{
		ctx:     ctx,
		auth:    auth,
		backend: backend,
		logger:  logger,
		events:  make(chan Msg, 64),
		form:    newAuthForm(false),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.router = routes.NewRouter(func(path string) { m.events <- navigatedMsg(path) })
	m.route = m.router.Current()
	m.bookList = m.newBookList()
	return m
}

// Route returns the route currently shown.
func (m *Model) Route() string {
	return m.route
}

// Init starts listening for router and guard events. A restored session goes straight to the dashboard.
func (m *Model) Init() tea.Cmd {
	if m.auth.Current() != nil {
		m.router.Navigate(routes.Dashboard)
	}
	return tea.Batch(m.waitForEvent(), m.form.inputs[0].Focus())
}

// Close releases the guard subscription.
func (m *Model) Close() {
	m.unmountDashboard()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bookList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.Close()
			return m, tea.Quit
		}
		switch {
		case m.route == routes.Login || m.route == routes.Signup:
			return m.handleAuthKeys(msg)
		case m.board == nil || m.guard.State() != routes.Authenticated:
			return m, nil
		case m.board.PendingDelete() != "":
			return m.handleConfirmKeys(msg)
		case m.board.EditorOpen():
			return m.handleEditorKeys(msg)
		default:
			return m.handleDashboardKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgNavigated:
		m.enter(msg.data.(string))
		return m, m.waitForEvent()

	case MsgGuardSettled:
		if msg.data.(routes.State) == routes.Authenticated && m.board != nil {
			m.busy = true
			return m, tea.Batch(m.waitForEvent(), m.load(m.board))
		}
		return m, m.waitForEvent()

	case MsgAuthenticated:
		m.busy = false
		res := msg.data.(authResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		m.router.Navigate(routes.Dashboard)
		return m, nil

	case MsgLoaded:
		m.busy = false
		m.err = errOf(msg.data)
		m.refreshList()
		return m, nil

	case MsgSubmitted:
		m.busy = false
		res := msg.data.(submitResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Saved %q", res.book.Title)
		m.refreshList()
		return m, nil

	case MsgDeleted:
		m.busy = false
		m.err = errOf(msg.data)
		if m.err == nil {
			m.status = "Deleted"
		}
		m.refreshList()
		return m, nil

	case MsgSignedOut:
		m.busy = false
		if err := errOf(msg.data); err != nil {
			m.logger.Warn("sign out reported an error", "error", err)
		}
		return m, nil
	}
	return m, nil
}

// enter switches views after a route change.
func (m *Model) enter(path string) {
	if path == m.route {
		return
	}
	m.route = path
	m.err = nil
	m.status = ""

	switch path {
	case routes.Dashboard:
		m.mountDashboard()
	case routes.Signup:
		m.unmountDashboard()
		m.form = newAuthForm(true)
	default:
		m.unmountDashboard()
		m.form = newAuthForm(false)
	}
}

func (m *Model) mountDashboard() {
	m.unmountDashboard()
	m.board = dashboard.New(m.backend, m.auth, m.router, m.logger)
	m.bookList = m.newBookList()
	m.guard = routes.NewGuard(m.auth, m.router, func(s routes.State) {
		m.events <- guardSettledMsg(s)
	})
	m.releaseGuard = m.guard.Mount()
}

func (m *Model) unmountDashboard() {
	if m.releaseGuard != nil {
		m.releaseGuard()
		m.releaseGuard = nil
	}
	m.guard = nil
	m.board = nil
}

func (m *Model) handleAuthKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.toggle):
		if m.route == routes.Login {
			m.router.Navigate(routes.Signup)
		} else {
			m.router.Navigate(routes.Login)
		}
		return m, nil
	case key.Matches(msg, m.keys.next):
		m.form.move(1)
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.form.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if !m.form.last() {
			m.form.move(1)
			return m, nil
		}
		return m, m.submitAuth()
	}

	return m, m.form.update(msg)
}

// submitAuth validates the form and starts sign in or sign up.
func (m *Model) submitAuth() tea.Cmd {
	email, password := m.form.email(), m.form.password()
	if email == "" || password == "" {
		m.err = fmt.Errorf("%w: email and password", shared.ErrMissingArgument)
		return nil
	}

	signup := m.route == routes.Signup
	if signup && !m.form.confirmed() {
		m.err = fmt.Errorf("%w: passwords do not match", shared.ErrInvalidInput)
		return nil
	}

	m.busy = true
	m.err = nil
	ctx, auth := m.ctx, m.auth
	return func() tea.Msg {
		var (
			p   *session.Principal
			err error
		)
		if signup {
			p, err = auth.SignUp(ctx, email, password)
		} else {
			p, err = auth.SignIn(ctx, email, password)
		}
		return authenticatedMsg(p, err)
	}
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.add):
		if err := m.board.OpenForCreate(); err != nil {
			m.err = err
			return m, nil
		}
		m.editor = newEditor(m.board.Draft(), m.width)
		return m, nil
	case key.Matches(msg, m.keys.edit):
		book, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.board.OpenForEdit(book); err != nil {
			m.err = err
			return m, nil
		}
		m.editor = newEditor(m.board.Draft(), m.width)
		return m, nil
	case key.Matches(msg, m.keys.remove):
		book, ok := m.selected()
		if !ok {
			return m, nil
		}
		prompt, err := m.board.RequestDelete(book.ID)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.status = prompt
		return m, nil
	case key.Matches(msg, m.keys.logout):
		m.busy = true
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg { return signedOutMsg(board.SignOut(ctx)) }
	}

	var cmd tea.Cmd
	m.bookList, cmd = m.bookList.Update(msg)
	return m, cmd
}

func (m *Model) handleEditorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.board.Close()
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.next):
		m.editor.move(1)
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.editor.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.save):
		return m, m.submitDraft()
	case key.Matches(msg, m.keys.enter) && m.editor.focus != fieldDescription:
		m.editor.move(1)
		return m, nil
	}

	return m, m.editor.update(msg)
}

// submitDraft copies the inputs into the draft and submits it.
func (m *Model) submitDraft() tea.Cmd {
	title, author, description := m.editor.values()
	if err := m.board.EditDraft(title, author, description); err != nil {
		m.err = err
		return nil
	}

	if err := models.Validate(m.board.Draft()); err != nil {
		m.err = dashboard.ErrInvalidDraft
		return nil
	}

	m.busy = true
	m.err = nil
	board, ctx := m.board, m.ctx
	return func() tea.Msg {
		book, err := board.Submit(ctx)
		return submittedMsg(book, err)
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.yes):
		m.busy = true
		m.status = ""
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg { return deletedMsg(board.ConfirmDelete(ctx, true)) }
	case key.Matches(msg, m.keys.no):
		m.status = ""
		if err := m.board.ConfirmDelete(m.ctx, false); err != nil {
			m.logger.Debug("cancel delete", "error", err)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.route == routes.Login || m.route == routes.Signup:
		cmd = m.form.update(msg)
	case m.board != nil && m.board.EditorOpen():
		cmd = m.editor.update(msg)
	case m.board != nil:
		m.bookList, cmd = m.bookList.Update(msg)
	}
	return m, cmd
}

func (m *Model) load(board *dashboard.Machine) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return loadedMsg(board.Load(ctx))
	}
}

// waitForEvent blocks on the next router or guard event.
func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m *Model) newBookList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-8, 0))
	l.Title = "My Library"
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetStatusBarItemName("book", "books")
	return l
}

func (m *Model) refreshList() {
	if m.board == nil {
		return
	}
	index := m.bookList.Index()
	m.bookList.SetItems(bookItems(m.board.Books()))
	if n := len(m.bookList.Items()); n > 0 {
		m.bookList.Select(min(index, n-1))
	}
}

func (m *Model) selected() (models.Book, bool) {
	item, ok := m.bookList.SelectedItem().(bookItem)
	if !ok {
		return models.Book{}, false
	}
	return item.book, true
}

// View renders the UI based on the current route.
func (m *Model) View() string {
	switch m.route {
	case routes.Login:
		return m.renderAuth("Welcome Back", "Login")
	case routes.Signup:
		return m.renderAuth("Create Account", "Sign Up")
	case routes.Dashboard:
		if m.guard == nil {
			return ""
		}
		view, _ := routes.Render(m.guard,
			func() string { return "Loading..." },
			m.renderDashboard,
		)
		return view
	default:
		return ""
	}
}

func (m *Model) renderAuth(title, action string) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	b.WriteString(m.form.view())
	b.WriteString("\n\n")

	switch {
	case m.busy:
		b.WriteString(styles.warn.Render("Please wait..."))
	case m.err != nil:
		b.WriteString(styles.err.Render(m.err.Error()))
	default:
		b.WriteString(styles.help.Render("enter: " + strings.ToLower(action)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.next, m.keys.enter, m.keys.toggle, m.keys.quit}))
	return b.String()
}

func (m *Model) renderDashboard() string {
	var b strings.Builder

	header := "Dashboard"
	if u := m.board.User(); u != nil {
		header = fmt.Sprintf("Dashboard • %s", u.Email)
	} else if p := m.auth.Current(); p != nil {
		header = fmt.Sprintf("Dashboard • %s", p.Email)
	}
	b.WriteString(styles.title.Render(header))
	b.WriteString("\n")

	switch {
	case m.board.EditorOpen():
		b.WriteString(m.renderEditor())
	case m.board.PendingDelete() != "":
		b.WriteString(styles.modal.Render(styles.warn.Render(dashboard.ConfirmPrompt)))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no}))
	default:
		if len(m.board.Books()) == 0 && !m.busy {
			b.WriteString(styles.help.Render(formatter.EmptyMessage))
			b.WriteString("\n")
		} else {
			b.WriteString(m.bookList.View())
		}
		b.WriteString("\n")
		b.WriteString(m.footer())
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.add, m.keys.edit, m.keys.remove, m.keys.logout, m.keys.quit}))
	}
	return b.String()
}

func (m *Model) renderEditor() string {
	title := "Add New Book"
	if m.board.EditingID() != "" {
		title = "Edit Book Details"
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	b.WriteString(m.editor.view())
	b.WriteString("\n\n")
	if m.busy {
		b.WriteString(styles.warn.Render("Saving..."))
	} else if m.err != nil {
		b.WriteString(styles.err.Render(m.err.Error()))
	}

	modal := styles.modal.Render(b.String())
	return modal + "\n" + m.help.ShortHelpView([]key.Binding{m.keys.next, m.keys.save, m.keys.back})
}

func (m *Model) footer() string {
	switch {
	case m.busy:
		return styles.warn.Render("Working...")
	case m.err != nil:
		return styles.err.Render(m.err.Error())
	case m.status != "":
		return styles.ok.Render(m.status)
	default:
		return ""
	}
}
