package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
	"github.com/odyssey-erp/simdesk/internal/view"
)

// LoginRecorder observes login outcomes.
type LoginRecorder interface {
	LoginAttempt(outcome string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	recorder       LoginRecorder
	loginLimit     int
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, recorder LoginRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		recorder:       recorder,
		loginLimit:     10,
	}
}

// SetLoginLimit changes how many login attempts one IP may make per minute.
func (h *Handler) SetLoginLimit(perMinute int) {
	if perMinute > 0 {
		h.loginLimit = perMinute
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(httprate.LimitByIP(h.loginLimit, time.Minute)).Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=128"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := rbac.PrincipalFromSession(shared.SessionFromContext(r.Context())); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				if fieldErr.Tag() == "required" {
					errs[fieldErr.Field()] = fieldErr.Field() + " is required"
				} else {
					errs[fieldErr.Field()] = fieldErr.Field() + " is too long"
				}
			}
		}
	}

	if len(errs) == 0 {
		principal, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
		switch {
		case err == nil:
			h.record("success")
			if sess == nil {
				h.logger.Error("session missing during login")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			h.sessionManager.Renew(sess)
			h.csrfManager.Rotate(sess)
			rbac.StorePrincipal(sess, principal)
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + principal.Username})
			h.logger.Info("login", slog.String("user", principal.Username), slog.String("role", string(principal.Role)))
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrInvalidCredentials):
			h.record("invalid")
			h.logger.Warn("login rejected", slog.String("user", form.Username), slog.String("ip", r.RemoteAddr))
			errs["general"] = shared.UserSafeMessage(err)
		default:
			h.record("error")
			h.logger.Error("login failed", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}

	form.Password = ""
	h.renderLogin(w, r, loginPageData{Form: form, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		rbac.ClearPrincipal(sess)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	viewData := view.Page(r, h.csrfManager, "Sign in", data)
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func (h *Handler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.LoginAttempt(outcome)
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
