// Package dashboard holds the view state of the book collection: the cached list, the editor draft,
// and the submit and delete flows that keep them in step with the backend.
//
// The backend is the source of truth. Local state changes only after the corresponding request
// succeeds, and a failed request is logged and leaves the collection as it was.
package dashboard
