package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quartermaster-erp/quartermaster/internal/platform/httpx"
	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
	"github.com/quartermaster-erp/quartermaster/internal/token"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	orchestrator   *Orchestrator
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, orchestrator *Orchestrator, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		orchestrator:   orchestrator,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.orchestrator.RequireAuth)
		r.Get("/me", h.handleMe)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type principalPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
}

type tokenPayload struct {
	Token     string           `json:"token"`
	TokenType string           `json:"token_type"`
	ExpiresIn int64            `json:"expires_in"`
	Principal principalPayload `json:"principal"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	p, tok, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			httpx.RespondError(w, err)
			return
		}
		httpx.Fail(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	// Parallel session for clients still on the cookie path. A first-time
	// client has no session id until commit, so mint one here; Commit keeps
	// a pre-set id.
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetPrincipal(strconv.FormatInt(p.ID, 10))
		if sess.ID == "" {
			sess.ID = uuid.NewString()
		}
		expiresAt := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(r.Context(), sess.ID, p.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	}

	role, err := h.orchestrator.Role(r.Context(), p)
	if err != nil {
		h.logger.Warn("resolve role at login", slog.Int64("principal_id", p.ID), slog.Any("error", err))
		role = ""
	}

	httpx.JSON(w, http.StatusOK, "Login successful.", tokenPayload{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: int64(h.service.TokenTTL() / time.Second),
		Principal: principalPayload{ID: p.ID, Username: p.Username, Email: p.Email, Role: role},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := token.FromRequest(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	refreshed, err := h.service.Refresh(r.Context(), raw)
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			httpx.RespondError(w, err)
			return
		}
		// Sub-reasons collapse to 401, same as authentication.
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, "Token refreshed.", map[string]any{
		"token":      refreshed,
		"token_type": "Bearer",
		"expires_in": int64(h.service.TokenTTL() / time.Second),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if sess.ID != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, "Logged out.", nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principal.FromContext(r.Context())
	if p == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	role, err := h.orchestrator.Role(r.Context(), p)
	if err != nil {
		role = ""
	}
	httpx.JSON(w, http.StatusOK, "OK", principalPayload{
		ID: p.ID, Username: p.Username, Email: p.Email, Role: role,
	})
}
