package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/signature"
)

// DefaultUserHeader carries the acting user's ID.
const DefaultUserHeader = "X-User-ID"

// Authenticator resolves the acting user of a request. Failures should wrap
// smsrelay.ErrUnauthenticated.
type Authenticator interface {
	Authenticate(r *http.Request) (id.ID, error)
}

// HeaderAuthenticator trusts a user ID header set by an upstream gateway
// that already authenticated the caller.
type HeaderAuthenticator struct {
	// Header defaults to DefaultUserHeader.
	Header string
}

// Authenticate implements Authenticator.
func (a HeaderAuthenticator) Authenticate(r *http.Request) (id.ID, error) {
	name := a.Header
	if name == "" {
		name = DefaultUserHeader
	}

	raw := r.Header.Get(name)
	if raw == "" {
		return id.Nil, fmt.Errorf("%w: missing %s header", smsrelay.ErrUnauthenticated, name)
	}

	userID, err := id.ParseUserID(raw)
	if err != nil {
		return id.Nil, fmt.Errorf("%w: %v", smsrelay.ErrUnauthenticated, err)
	}
	return userID, nil
}

// SignedAuthenticator requires an HMAC signature over the request body
// before delegating to Next. The body is restored for the handler.
type SignedAuthenticator struct {
	Secret    string
	Tolerance time.Duration
	Next      Authenticator

	// Now defaults to time.Now.
	Now func() time.Time
}

// Authenticate implements Authenticator.
func (a SignedAuthenticator) Authenticate(r *http.Request) (id.ID, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return id.Nil, fmt.Errorf("%w: read body: %v", smsrelay.ErrUnauthenticated, err)
		}
		_ = r.Body.Close()
		body = b
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	if err := signature.VerifyRequest(r.Header, body, a.Secret, a.Tolerance, now()); err != nil {
		return id.Nil, fmt.Errorf("%w: %v", smsrelay.ErrUnauthenticated, err)
	}

	next := a.Next
	if next == nil {
		next = HeaderAuthenticator{}
	}
	return next.Authenticate(r)
}
