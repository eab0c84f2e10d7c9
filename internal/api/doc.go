// Package api is the authenticated client for the book collection backend.
//
// # Transport
//
// [BearerTransport] wraps an [http.RoundTripper]. While a principal is signed in it asks the
// [session.Oracle] for a fresh token before each request and sets the Authorization header on a
// clone of the request. When no token can be obtained the request is not sent and the round trip
// fails with [shared.ErrAuthUnavailable]. Requests issued while signed out go out bare.
//
// # Client
//
// [Client] exposes raw Get/Post calls returning an [APIResponse] (used by `shelf api get`) and the
// typed backend operations:
//
//	GET    /api/user/me     -> models.User
//	GET    /api/books       -> []models.Book
//	POST   /api/books       -> models.Book
//	PUT    /api/books/{id}  -> models.Book
//	DELETE /api/books/{id}
//
// Non-2xx responses from typed calls are returned as [*StatusError], which matches
// [shared.ErrAPIRequest] (and [shared.ErrNotFound] for 404s) with [errors.Is].
package api
