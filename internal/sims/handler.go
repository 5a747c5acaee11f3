package sims

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/simdesk/internal/platform/httpx"
	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
	"github.com/odyssey-erp/simdesk/internal/view"
)

// Handler wires HTTP endpoints for the SIM module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs the SIM handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountDashboard registers the dashboard page.
func (h *Handler) MountDashboard(r chi.Router) {
	r.With(h.rbac.RequireRole(rbac.RoleViewer)).Get("/dashboard", h.showDashboard)
}

// MountRoutes registers SIM routes relative to the mount point.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleViewer))
		r.Get("/", h.listSims)
		r.Get("/{id}", h.showSim)
		r.Get("/{id}/usage.json", h.usageJSON)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleOperator))
		r.Get("/add", h.showCreateForm)
		r.Post("/add", h.handleCreate)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/edit", h.handleEdit)
		r.Post("/{id}/usage", h.handleRecordUsage)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Post("/{id}/delete", h.handleDelete)
	})
}

type dashboardPageData struct {
	Stats DashboardStats
}

type listPageData struct {
	Search string
	Sims   []SimCard
}

type formPageData struct {
	Editing  bool
	SimID    int64
	Form     SimInput
	Errors   map[string]string
	Statuses []Status
}

type usageFormValues struct {
	DataUsedMB  string
	CallMinutes string
	SMSCount    string
	Date        string
}

type detailPageData struct {
	Sim         SimCard
	Usage       []UsageRecord
	UsageForm   usageFormValues
	UsageErrors map[string]string
	CanEdit     bool
	CanDelete   bool
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	actor := principal(r)
	stats, err := h.service.DashboardStats(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", dashboardPageData{Stats: stats})
}

func (h *Handler) listSims(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	sims, err := h.service.List(r.Context(), principal(r), search)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/sims/list.html", "SIM cards", listPageData{Search: search, Sims: sims})
}

func (h *Handler) showSim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simID(w, r)
	if !ok {
		return
	}
	h.renderDetail(w, r, id, usageFormValues{}, nil, http.StatusOK)
}

func (h *Handler) renderDetail(w http.ResponseWriter, r *http.Request, id int64, form usageFormValues, errs map[string]string, status int) {
	actor := principal(r)
	sim, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	usage, err := h.service.UsageHistory(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := detailPageData{
		Sim:         sim,
		Usage:       usage,
		UsageForm:   form,
		UsageErrors: errs,
		CanEdit:     actor.Can(rbac.RoleOperator),
		CanDelete:   actor.Can(rbac.RoleAdmin),
	}
	h.render(w, r, status, "pages/sims/detail.html", "SIM "+sim.IMEI, data)
}

func (h *Handler) usageJSON(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	actor := principal(r)
	if _, err := h.service.Get(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	usage, err := h.service.UsageHistory(r.Context(), actor, id)
	if err != nil {
		h.logger.Error("usage history", slog.Int64("sim_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sim_id": id, "usage": usage})
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formPageData{Form: SimInput{Status: string(StatusActive)}}, http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := parseSimInput(r)
	sim, err := h.service.Create(r.Context(), principal(r), input)
	if err != nil {
		h.formError(w, r, formPageData{Form: input}, err)
		return
	}
	shared.AddFlash(r.Context(), "success", "SIM card "+sim.IMEI+" created")
	http.Redirect(w, r, simPath(sim.ID), http.StatusSeeOther)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simID(w, r)
	if !ok {
		return
	}
	sim, err := h.service.Get(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderForm(w, r, formPageData{Editing: true, SimID: id, Form: inputFromSim(sim)}, http.StatusOK)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := principal(r)
	update := parseSimUpdate(r)
	sim, err := h.service.Update(r.Context(), actor, id, update)
	if err != nil {
		form := SimInput{
			PhoneNumber: update.PhoneNumber,
			Carrier:     update.Carrier,
			ExpiryDate:  update.ExpiryDate,
			Status:      update.Status,
			OwnerName:   update.OwnerName,
			OwnerID:     update.OwnerID,
		}
		if current, getErr := h.service.Get(r.Context(), actor, id); getErr == nil {
			form.IMEI, form.IMSI, form.IssueDate = current.IMEI, current.IMSI, current.IssueDate.Format(DateLayout)
		}
		h.formError(w, r, formPageData{Editing: true, SimID: id, Form: form}, err)
		return
	}
	shared.AddFlash(r.Context(), "success", "SIM card "+sim.IMEI+" updated")
	http.Redirect(w, r, simPath(id), http.StatusSeeOther)
}

func (h *Handler) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	values, input, errs := parseUsageForm(r)
	if len(errs) == 0 {
		_, err := h.service.RecordUsage(r.Context(), principal(r), id, input)
		if err == nil {
			shared.AddFlash(r.Context(), "success", "Usage recorded")
			http.Redirect(w, r, simPath(id), http.StatusSeeOther)
			return
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			h.fail(w, r, err)
			return
		}
		errs = verr.Fields
	}
	h.renderDetail(w, r, id, values, errs, http.StatusBadRequest)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.AddFlash(r.Context(), "success", "SIM card deleted")
	http.Redirect(w, r, "/sims", http.StatusSeeOther)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, data formPageData, status int) {
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}
	data.Statuses = Statuses()
	title := "Add SIM card"
	if data.Editing {
		title = "Edit SIM card"
	}
	h.render(w, r, status, "pages/sims/form.html", title, data)
}

// formError re-renders the form for validation and duplicate errors and falls
// back to fail for everything else.
func (h *Handler) formError(w http.ResponseWriter, r *http.Request, data formPageData, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		data.Errors = verr.Fields
		data.Errors["general"] = shared.UserSafeMessage(shared.ErrValidation)
		h.renderForm(w, r, data, http.StatusBadRequest)
	case errors.Is(err, shared.ErrDuplicateKey):
		data.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
		h.renderForm(w, r, data, http.StatusConflict)
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrDenied):
		h.fail(w, r, err)
	default:
		h.logger.Error("save sim", slog.Any("error", err))
		data.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
		h.renderForm(w, r, data, http.StatusInternalServerError)
	}
}

// fail turns a service error into a flash message and a redirect.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		shared.AddFlash(r.Context(), "error", shared.UserSafeMessage(err))
		http.Redirect(w, r, "/sims", http.StatusSeeOther)
	case errors.Is(err, shared.ErrDenied):
		h.logger.Warn("sims denied", slog.String("path", r.URL.Path), slog.Any("error", err))
		shared.AddFlash(r.Context(), "error", shared.UserSafeMessage(err))
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	default:
		h.logger.Error("sims request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.Page(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
	}
}

func (h *Handler) simID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, shared.ErrNotFound)
		return 0, false
	}
	return id, true
}

func principal(r *http.Request) rbac.Principal {
	p, _ := rbac.PrincipalFromContext(r.Context())
	return p
}

func simPath(id int64) string {
	return "/sims/" + strconv.FormatInt(id, 10)
}
