package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelf/internal/models"
)

// authForm backs both the login and signup views. Signup adds a confirmation field.
type authForm struct {
	inputs []textinput.Model
	focus  int
}

func newAuthForm(signup bool) authForm {
	email := textinput.New()
	email.Placeholder = "Email"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "Password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	inputs := []textinput.Model{email, password}
	if signup {
		confirm := textinput.New()
		confirm.Placeholder = "Confirm password"
		confirm.EchoMode = textinput.EchoPassword
		confirm.EchoCharacter = '•'
		inputs = append(inputs, confirm)
	}

	f := authForm{inputs: inputs}
	f.inputs[0].Focus()
	return f
}

func (f authForm) email() string    { return strings.TrimSpace(f.inputs[0].Value()) }
func (f authForm) password() string { return f.inputs[1].Value() }

// confirmed reports whether the confirmation field, if any, matches the password.
func (f authForm) confirmed() bool {
	if len(f.inputs) < 3 {
		return true
	}
	return f.inputs[2].Value() == f.inputs[1].Value()
}

func (f authForm) last() bool { return f.focus == len(f.inputs)-1 }

func (f *authForm) move(delta int) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *authForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f authForm) view() string {
	views := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		views[i] = in.View()
	}
	return strings.Join(views, "\n")
}

const (
	fieldTitle = iota
	fieldAuthor
	fieldDescription
	fieldCount
)

// editor holds the inputs of the add/edit modal.
type editor struct {
	title       textinput.Model
	author      textinput.Model
	description textarea.Model
	focus       int
}

func newEditor(draft models.Book, width int) editor {
	title := textinput.New()
	title.Placeholder = "Title"
	title.SetValue(draft.Title)

	author := textinput.New()
	author.Placeholder = "Author"
	author.SetValue(draft.Author)

	description := textarea.New()
	description.Placeholder = "Description"
	description.ShowLineNumbers = false
	description.SetHeight(4)
	if width > 10 {
		description.SetWidth(min(width-10, 60))
	}
	description.SetValue(draft.Description)

	e := editor{title: title, author: author, description: description}
	e.title.Focus()
	return e
}

func (e editor) values() (title, author, description string) {
	return e.title.Value(), e.author.Value(), e.description.Value()
}

func (e *editor) move(delta int) {
	switch e.focus {
	case fieldTitle:
		e.title.Blur()
	case fieldAuthor:
		e.author.Blur()
	case fieldDescription:
		e.description.Blur()
	}

	e.focus = (e.focus + delta + fieldCount) % fieldCount

	switch e.focus {
	case fieldTitle:
		e.title.Focus()
	case fieldAuthor:
		e.author.Focus()
	case fieldDescription:
		e.description.Focus()
	}
}

func (e *editor) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch e.focus {
	case fieldTitle:
		e.title, cmd = e.title.Update(msg)
	case fieldAuthor:
		e.author, cmd = e.author.Update(msg)
	case fieldDescription:
		e.description, cmd = e.description.Update(msg)
	}
	return cmd
}

func (e editor) view() string {
	return strings.Join([]string{e.title.View(), e.author.View(), e.description.View()}, "\n")
}
