package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quartermaster-erp/quartermaster/internal/audit"
	"github.com/quartermaster-erp/quartermaster/internal/platform/httpx"
	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// Handler manages role administration endpoints. All routes are gated on
// manage_users in the router; the resolver re-checks admin on assignment
// mutations as defense in depth.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *Resolver
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, recorder *audit.Recorder) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		resolver:  resolver,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountRoutes registers role administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Put("/roles/{id}", h.updateRole)
	r.Delete("/roles/{id}", h.deleteRole)
	r.Put("/principals/{id}/role", h.assignRole)
	r.Delete("/principals/{id}/role", h.removeRole)
}

type rolePayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system"`
}

func toPayload(role *Role) rolePayload {
	return rolePayload{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
		IsSystem:    role.IsSystem,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]rolePayload, len(list))
	for i := range list {
		payload[i] = toPayload(&list[i])
	}
	httpx.JSON(w, http.StatusOK, "OK", map[string]any{"roles": payload})
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Role name is required.")
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.DisplayName, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.create", "role", strconv.FormatInt(role.ID, 10), nil, toPayload(role))
	httpx.JSON(w, http.StatusCreated, "Role created.", toPayload(role))
}

type updateRoleRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Description string `json:"description"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid role id.")
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Display name is required.")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.DisplayName, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.update", "role", strconv.FormatInt(id, 10), nil, toPayload(role))
	httpx.JSON(w, http.StatusOK, "Role updated.", toPayload(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid role id.")
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, ErrSystemRole) {
			httpx.Fail(w, http.StatusConflict, "System role cannot be deleted.")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.delete", "role", strconv.FormatInt(id, 10), nil, nil)
	httpx.JSON(w, http.StatusOK, "Role deleted.", nil)
}

type assignRoleRequest struct {
	Role      string     `json:"role" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid principal id.")
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Role name is required.")
		return
	}
	actor := principal.FromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.resolver.Assign(r.Context(), targetID, req.Role, actor.ID, req.ExpiresAt); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.assign", "role_assignment", strconv.FormatInt(targetID, 10), nil,
		map[string]any{"role": req.Role, "expires_at": req.ExpiresAt})
	httpx.JSON(w, http.StatusOK, "Role assigned.", nil)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid principal id.")
		return
	}
	roleName := r.URL.Query().Get("role")
	if roleName == "" {
		httpx.Fail(w, http.StatusBadRequest, "Role name is required.")
		return
	}
	actor := principal.FromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.resolver.Remove(r.Context(), targetID, roleName, actor.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, "role.remove", "role_assignment", strconv.FormatInt(targetID, 10),
		map[string]any{"role": roleName}, nil)
	httpx.JSON(w, http.StatusOK, "Role removed.", nil)
}

func (h *Handler) record(r *http.Request, action, resourceType, resourceID string, oldValue, newValue any) {
	actorID := int64(0)
	if actor := principal.FromContext(r.Context()); actor != nil {
		actorID = actor.ID
	}
	h.recorder.Record(r.Context(), audit.Entry{
		PrincipalID:  actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValue:     oldValue,
		NewValue:     newValue,
		Origin:       r.RemoteAddr,
		Agent:        r.UserAgent(),
	})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
