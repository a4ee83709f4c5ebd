// Package identity derives who is calling from the incoming request and
// carries the credentials that must be forwarded to the datastore.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const Anonymous = "anonymous"

// DefaultForwardHeaders are copied to the datastore when nothing is configured.
var DefaultForwardHeaders = []string{"Authorization"}

// Caller is the identity of one request. Headers holds the credentials
// forwarded on every datastore call made on its behalf.
type Caller struct {
	Name    string
	Headers http.Header
}

type callerKey struct{}

// FromRequest builds the caller from the request. The bearer token is not
// verified here; the datastore authenticates the forwarded credentials.
func FromRequest(r *http.Request, forward []string) Caller {
	if len(forward) == 0 {
		forward = DefaultForwardHeaders
	}
	headers := make(http.Header)
	for _, name := range forward {
		if values := r.Header.Values(name); len(values) > 0 {
			headers[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	return Caller{Name: nameOf(r), Headers: headers}
}

func nameOf(r *http.Request) string {
	if user, _, ok := r.BasicAuth(); ok && user != "" {
		return user
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if name := tokenSubject(strings.TrimSpace(auth[7:])); name != "" {
			return name
		}
	}
	return Anonymous
}

func tokenSubject(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	for _, key := range []string{"preferred_username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller stored by WithCaller, or an anonymous
// caller with no forwarded headers.
func FromContext(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey{}).(Caller); ok {
		return c
	}
	return Caller{Name: Anonymous, Headers: http.Header{}}
}
