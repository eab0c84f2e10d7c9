// Package repositories implements SQLite persistence for client-side state.
//
// The only persisted entity is the signed-in session ([StoredSession]), so that separate CLI invocations and the TUI
// share one login. The book collection itself is never persisted locally; the backend is its source of truth.
package repositories
