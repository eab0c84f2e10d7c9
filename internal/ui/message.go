package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/routes"
	"github.com/desertthunder/shelf/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgNavigated MsgKind = iota
	MsgGuardSettled
	MsgAuthenticated
	MsgLoaded
	MsgSubmitted
	MsgDeleted
	MsgSignedOut
)

type authResult struct {
	principal *session.Principal
	err       error
}

type submitResult struct {
	book *models.Book
	err  error
}

// navigatedMsg is the constructor for [MsgNavigated]
func navigatedMsg(path string) Msg {
	return Msg{kind: MsgNavigated, data: path}
}

// guardSettledMsg is the constructor for [MsgGuardSettled]
func guardSettledMsg(state routes.State) Msg {
	return Msg{kind: MsgGuardSettled, data: state}
}

// authenticatedMsg is the constructor for [MsgAuthenticated]
func authenticatedMsg(p *session.Principal, err error) Msg {
	return Msg{kind: MsgAuthenticated, data: authResult{p, err}}
}

// loadedMsg is the constructor for [MsgLoaded]
func loadedMsg(err error) Msg {
	return Msg{kind: MsgLoaded, data: err}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(book *models.Book, err error) Msg {
	return Msg{kind: MsgSubmitted, data: submitResult{book, err}}
}

// deletedMsg is the constructor for [MsgDeleted]
func deletedMsg(err error) Msg {
	return Msg{kind: MsgDeleted, data: err}
}

// signedOutMsg is the constructor for [MsgSignedOut]
func signedOutMsg(err error) Msg {
	return Msg{kind: MsgSignedOut, data: err}
}

func errOf(data any) error {
	err, _ := data.(error)
	return err
}
