// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth carries the identity of the caller through a request.
//
// The gateway does not validate tokens. It only extracts the bearer token so
// it can be forwarded to the inference backend, and reads identifying claims
// for logs and quota lookups.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// User represents an authenticated or unauthenticated caller.
type User interface {
	// IsAuthenticated returns true if the request carried credentials.
	IsAuthenticated() bool

	// UserName returns the display name of the user, or an empty string.
	UserName() string

	// UserID returns a stable identifier of the user, or an empty string.
	UserID() string

	// Token returns the raw bearer token, or an empty string.
	Token() string
}

// UnauthenticatedUser represents a caller without credentials.
// It is safe to use as a zero value and is immutable.
type UnauthenticatedUser struct{}

var _ User = UnauthenticatedUser{}

// IsAuthenticated always returns false for unauthenticated users.
func (UnauthenticatedUser) IsAuthenticated() bool { return false }

// UserName always returns an empty string for unauthenticated users.
func (UnauthenticatedUser) UserName() string { return "" }

// UserID always returns an empty string for unauthenticated users.
func (UnauthenticatedUser) UserID() string { return "" }

// Token always returns an empty string for unauthenticated users.
func (UnauthenticatedUser) Token() string { return "" }

// TokenUser is a caller identified by a bearer token.
//
// When the token is a JWT, the subject and preferred_username claims are read
// without verifying the signature. Opaque tokens yield an empty identity.
type TokenUser struct {
	token string
	id    string
	name  string
}

var _ User = (*TokenUser)(nil)

// NewTokenUser returns the user carried by a raw bearer token.
func NewTokenUser(token string) *TokenUser {
	u := &TokenUser{token: token}

	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return u
	}
	if sub, ok := parsed.Subject(); ok {
		u.id = sub
	}
	var name string
	if err := parsed.Get("preferred_username", &name); err == nil {
		u.name = name
	} else {
		u.name = u.id
	}
	return u
}

// IsAuthenticated returns true.
func (u *TokenUser) IsAuthenticated() bool { return true }

// UserName returns the preferred_username claim, falling back to the subject.
func (u *TokenUser) UserName() string { return u.name }

// UserID returns the subject claim.
func (u *TokenUser) UserID() string { return u.id }

// Token returns the raw bearer token.
func (u *TokenUser) Token() string { return u.token }

// FromRequest returns the caller of r based on its Authorization header.
func FromRequest(r *http.Request) User {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return UnauthenticatedUser{}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return UnauthenticatedUser{}
	}
	return NewTokenUser(token)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored in ctx, or UnauthenticatedUser.
func UserFromContext(ctx context.Context) User {
	if u, ok := ctx.Value(userKey{}).(User); ok && u != nil {
		return u
	}
	return UnauthenticatedUser{}
}

// Middleware stores the caller of every request in its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), FromRequest(r))))
	})
}
