package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/simdesk/internal/shared"
)

// Middleware wires role checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
	// LoginPath receives requests without an authenticated session.
	LoginPath string
	// DeniedPath receives authenticated requests whose role is too low.
	DeniedPath string
}

// RequireRole lets the request through only when the session principal ranks
// at or above role. Missing sessions redirect to LoginPath; insufficient roles
// redirect to DeniedPath with an error flash.
func (m Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromSession(shared.SessionFromContext(r.Context()))
			if !ok {
				shared.AddFlash(r.Context(), "info", "Please sign in to continue")
				http.Redirect(w, r, m.loginPath(), http.StatusSeeOther)
				return
			}
			if Authorize(p, role) == Denied {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied",
						slog.String("user", p.Username),
						slog.String("role", string(p.Role)),
						slog.String("required", string(role)),
						slog.String("path", r.URL.Path))
				}
				shared.AddFlash(r.Context(), "error", shared.UserSafeMessage(shared.ErrDenied))
				http.Redirect(w, r, m.deniedPath(), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func (m Middleware) loginPath() string {
	if m.LoginPath == "" {
		return "/login"
	}
	return m.LoginPath
}

func (m Middleware) deniedPath() string {
	if m.DeniedPath == "" {
		return "/dashboard"
	}
	return m.DeniedPath
}
