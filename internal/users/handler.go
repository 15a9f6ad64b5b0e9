package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/authz"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes role management over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	mw       Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		mw:       mw,
	}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/users/{userID}/roles", func(r chi.Router) {
		r.With(h.mw.RequirePermission(shared.PermUsersView)).Get("/", h.listRoles)
		r.Post("/", h.assignRole)
		r.Delete("/{role}", h.revokeRole)
	})
	r.Get("/roles/assignable", h.assignableRoles)
	r.Get("/tenants/assignable", h.assignableTenants)
	r.Get("/me/permissions", h.myPermissions)
}

type assignRoleRequest struct {
	Role      string `json:"role" validate:"required"`
	Scope     string `json:"scope" validate:"required,oneof=GLOBAL COMPANY"`
	CompanyID string `json:"company_id" validate:"omitempty,uuid"`
}

type assignmentView struct {
	Scope     string `json:"scope"`
	CompanyID string `json:"company_id,omitempty"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	GrantedAt string `json:"granted_at"`
	GrantedBy int64  `json:"granted_by"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	targetID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	scope := authz.GlobalScope()
	if authz.ScopeKind(req.Scope) == authz.ScopeCompany {
		scope = authz.CompanyScope(parseTenant(req.CompanyID))
	}
	decision, err := h.service.AssignRole(r.Context(), actor, targetID, authz.RoleID(req.Role), scope)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	if !decision.Allowed {
		respondDenied(w, decision)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"allowed":    true,
		"role":       req.Role,
		"scope":      req.Scope,
		"company_id": req.CompanyID,
	})
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	targetID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	role := authz.RoleID(chi.URLParam(r, "role"))
	tenantID := requestTenant(r)
	scope := authz.GlobalScope()
	if tenantID != uuid.Nil {
		scope = authz.CompanyScope(tenantID)
	}
	decision, err := h.service.RevokeRole(r.Context(), actor, targetID, role, scope)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.respondEngineError(w, err)
		return
	}
	if !decision.Allowed {
		respondDenied(w, decision)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	assignments, err := h.service.Assignments(r.Context(), targetID)
	if err != nil {
		h.logger.Error("list assignments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		view := assignmentView{
			Scope:     string(a.Scope.Kind),
			Role:      string(a.Role),
			IsActive:  a.IsActive,
			GrantedAt: a.GrantedAt.UTC().Format(time.RFC3339),
			GrantedBy: a.GrantedBy,
		}
		if a.Scope.Kind == authz.ScopeCompany {
			view.CompanyID = a.Scope.TenantID.String()
		}
		views = append(views, view)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": views})
}

func (h *Handler) assignableRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	roles, err := h.service.AssignableRoles(r.Context(), actor, requestTenant(r))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": names})
}

func (h *Handler) assignableTenants(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	set, err := h.service.AssignableTenants(r.Context(), actor)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	ids := make([]string, 0, len(set.IDs))
	for _, id := range set.List() {
		ids = append(ids, id.String())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"all": set.All, "tenant_ids": ids})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.sessionActor(w, r)
	if !ok {
		return
	}
	perms, err := h.service.Permissions(r.Context(), actor, requestTenant(r))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms.List()})
}

func (h *Handler) sessionActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

// respondEngineError distinguishes malformed input from infrastructure
// failure: unknown role identifiers are caller bugs, not denials.
func (h *Handler) respondEngineError(w http.ResponseWriter, err error) {
	var unknown *authz.UnknownRoleError
	if errors.As(err, &unknown) || errors.Is(err, authz.ErrNotCompanyRole) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if errors.Is(err, httpx.ErrConflict) {
		httpx.RespondError(w, httpx.ErrConflict)
		return
	}
	h.logger.Error("role operation", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func respondDenied(w http.ResponseWriter, decision authz.Decision) {
	httpx.JSON(w, http.StatusForbidden, httpx.ProblemDetail{
		Title:  "Role Grant Denied",
		Status: http.StatusForbidden,
		Detail: decision.Message,
		Reason: string(decision.Reason),
	})
}

func parseTenant(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
