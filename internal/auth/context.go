package auth

import (
	"context"

	"github.com/ayusman/signspeak/internal/store"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// WithUser returns a copy of ctx carrying the authenticated user and session.
func WithUser(ctx context.Context, user *store.User, sess *store.Session) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	if sess != nil {
		ctx = context.WithValue(ctx, sessionContextKey, sess)
	}
	return ctx
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey).(*store.User)
	return user
}

// SessionFromContext returns the current session, or nil.
func SessionFromContext(ctx context.Context) *store.Session {
	sess, _ := ctx.Value(sessionContextKey).(*store.Session)
	return sess
}
