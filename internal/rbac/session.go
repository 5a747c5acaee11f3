package rbac

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/simdesk/internal/shared"
)

const (
	sessionUsernameKey = "username"
	sessionRoleKey     = "role"
)

// StorePrincipal records the principal on the session after a successful login.
func StorePrincipal(sess *shared.Session, p Principal) {
	if sess == nil {
		return
	}
	sess.SetUser(strconv.FormatInt(p.UserID, 10))
	sess.Set(sessionUsernameKey, p.Username)
	sess.Set(sessionRoleKey, string(p.Role))
}

// ClearPrincipal removes any identity from the session.
func ClearPrincipal(sess *shared.Session) {
	if sess == nil {
		return
	}
	sess.SetUser("")
	sess.Delete(sessionUsernameKey)
	sess.Delete(sessionRoleKey)
}

// PrincipalFromSession rebuilds the principal stored on the session.
func PrincipalFromSession(sess *shared.Session) (Principal, bool) {
	if sess == nil || sess.User() == "" {
		return Principal{}, false
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return Principal{}, false
	}
	p := Principal{UserID: id, Username: sess.Get(sessionUsernameKey), Role: Role(sess.Get(sessionRoleKey))}
	if !p.Authenticated() {
		return Principal{}, false
	}
	return p, true
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal placed by Middleware, falling back
// to the request session.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if p, ok := ctx.Value(principalContextKey{}).(Principal); ok && p.Authenticated() {
		return p, true
	}
	return PrincipalFromSession(shared.SessionFromContext(ctx))
}
