// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// Views follow the client routes:
//  1. /login : email and password sign in
//  2. /signup : account creation with password confirmation
//  3. /dashboard : the guarded book list, with an editor modal and a delete confirmation on top
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Router and guard callbacks may fire on any goroutine, so they are forwarded through a channel that a
// re-armed [tea.Cmd] drains one message at a time.
//
// Keyboard navigation uses single-letter bindings on the list (a/e/d/o), tab to move between inputs,
// and y/n for confirmation, with contextual help displayed via charmbracelet/bubbles/help.
package ui
