// Package routes defines the navigational routes of the client and the guard that protects
// the dashboard.
//
// A [Guard] starts in [Checking], subscribes to the session oracle when mounted, and settles on
// the first notification into [Authenticated] or [Unauthenticated]. The settled state does not
// change for the lifetime of the mount. Unmounting releases the subscription exactly once and any
// notification that arrives afterwards is ignored.
package routes
