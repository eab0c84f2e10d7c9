package api

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
)

// BearerTransport attaches the current principal's bearer token to outgoing requests.
type BearerTransport struct {
	Base   http.RoundTripper
	Oracle session.Oracle
}

// RoundTrip implements [http.RoundTripper].
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.Oracle == nil || t.Oracle.Current() == nil {
		return base.RoundTrip(req)
	}

	token, err := t.Oracle.Token(req.Context())
	if err != nil {
		closeBody(req)
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthUnavailable, err)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(authed)
}

// closeBody honors the RoundTripper contract of closing the body on every path.
func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
