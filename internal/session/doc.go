// Package session is the client's explicit session context.
//
// A [Session] holds the signed-in [Principal] (if any) and pushes every change to subscribed listeners. It is passed
// to the route guard and the authenticated request client instead of being looked up from global state.
//
// Lifecycle:
//
//	unresolved --Restore--> resolved(principal | nil)
//	resolved   --SignIn/SignUp--> resolved(principal)
//	resolved   --SignOut-------> resolved(nil)
//
// Listeners registered while the session is unresolved receive their first call when [Session.Restore] finishes;
// listeners registered later are called immediately with the current value.
package session
