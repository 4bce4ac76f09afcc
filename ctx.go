package navgate

import (
	"context"

	"github.com/goliatone/go-router"
)

var sessionCtxKey = &contextKey{"session"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// WithClaimsContext sets the SessionClaims in the given context
func WithClaimsContext(r context.Context, claims SessionClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the SessionClaims from the standard context
func GetClaims(ctx context.Context) (SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(SessionClaims)
	return raw, ok
}

// GetRouterClaims extracts the SessionClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (SessionClaims, bool) {
	if key == "" {
		key = "session" // Default key used by session middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(SessionClaims)
	return claims, ok
}

// SessionFromRouterContext rebuilds the Session a request carries. The session
// middleware stores either a ready Session or the validated claims under the
// context key; both shapes are handled here so callers downstream of the
// middleware never re-parse the token.
func SessionFromRouterContext(ctx router.Context, key string) (Session, bool) {
	if key == "" {
		key = "session"
	}

	raw := ctx.Locals(key)
	if raw == nil {
		return Session{}, false
	}

	switch val := raw.(type) {
	case Session:
		return val, true
	case *Session:
		if val != nil {
			return val.clone(), true
		}
	case SessionClaims:
		session, err := SessionFromClaims(val)
		if err != nil {
			return Session{}, false
		}
		return session, true
	}

	return Session{}, false
}

// RoleFromRouterContext reports the effective role the request carries,
// RoleGuest when the request is anonymous.
func RoleFromRouterContext(ctx router.Context, key string) UserRole {
	session, ok := SessionFromRouterContext(ctx, key)
	if !ok {
		return RoleGuest
	}
	return session.Role()
}
