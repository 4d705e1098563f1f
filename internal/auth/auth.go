// Package auth carries the caller's identity through a request context so
// collaborators can scope their queries. Credential handling lives outside
// this module.
package auth

import "context"

// Context identifies the caller of a workflow run.
type Context struct {
	UserID string   `json:"userId,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	Token  string   `json:"-"`
}

// HasScope reports whether the caller was granted scope.
func (c Context) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// With returns ctx carrying a.
func With(ctx context.Context, a Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// From returns the auth context stored in ctx, if any.
func From(ctx context.Context) (Context, bool) {
	a, ok := ctx.Value(ctxKey{}).(Context)
	return a, ok
}
