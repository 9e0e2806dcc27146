package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aegisauth/aegis/internal/auth"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/services"
	pkghttp "github.com/aegisauth/aegis/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, *models.AdmissionDecision, error)
	Refresh(ctx context.Context, credential, ipAddress, userAgent string) (*services.LoginResult, error)
	Logout(ctx context.Context, credential, ipAddress string, actorID uuid.UUID) error
	LogoutAll(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error)
}

// SessionServiceInterface defines the session operations the auth surface exposes
type SessionServiceInterface interface {
	ListActive(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error)
	RevokeByID(ctx context.Context, sessionID, actorID uuid.UUID, ipAddress string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, sessions SessionServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents the request body for logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse is the client-facing view of an active session. The
// credential hash never leaves the service.
type SessionResponse struct {
	ID             string `json:"id"`
	IPAddress      string `json:"ip_address"`
	DeviceType     string `json:"device_type"`
	Browser        string `json:"browser"`
	OS             string `json:"os"`
	LastActivityAt string `json:"last_activity_at"`
	CreatedAt      string `json:"created_at"`
	ExpiresAt      string `json:"expires_at"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, decision, err := h.service.Login(r.Context(), req.Email, req.Password, ip, r.UserAgent())
	if err != nil {
		h.writeLoginError(w, decision, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeLoginError maps login outcomes to responses. Credential failures
// all collapse into one generic message; policy denials stay
// distinguishable.
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, decision *models.AdmissionDecision, err error) {
	switch {
	case errors.Is(err, models.ErrIPBlocked):
		pkghttp.WriteIPBlocked(w)
	case errors.Is(err, models.ErrRateLimitExceeded):
		wait := 60
		if decision != nil && decision.WaitSeconds > 0 {
			wait = decision.WaitSeconds
		}
		pkghttp.WriteRateLimited(w, wait)
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteError(w, http.StatusForbidden, "account_locked", "Account is temporarily locked")
	case errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteError(w, http.StatusForbidden, "email_not_verified", "Email address must be verified before logging in")
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	default:
		pkghttp.WriteInternalError(w, "Login failed")
	}
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Refresh(r.Context(), req.RefreshToken, ip, r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSessionExpired):
			pkghttp.WriteUnauthorized(w, "Session has expired, log in again")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid refresh token")
		default:
			pkghttp.WriteInternalError(w, "Token refresh failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout revokes the session behind the presented refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetActorFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actorID, err := uuid.Parse(claims.ActorID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.service.Logout(r.Context(), req.RefreshToken, ip, actorID); err != nil {
		pkghttp.WriteInternalError(w, "Logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every active session for the authenticated actor
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetActorFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	actorID, err := uuid.Parse(claims.ActorID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	revoked, err := h.service.LogoutAll(r.Context(), actorID, ip)
	if err != nil {
		pkghttp.WriteInternalError(w, "Logout failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"revoked_sessions": revoked})
}

// ListSessions returns the authenticated actor's active sessions
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetActorFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	actorID, err := uuid.Parse(claims.ActorID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	sessions, err := h.sessions.ListActive(r.Context(), actorID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:             s.ID.String(),
			IPAddress:      s.IPAddress,
			DeviceType:     s.DeviceType,
			Browser:        s.Browser,
			OS:             s.OS,
			LastActivityAt: s.LastActivityAt.Format("2006-01-02T15:04:05Z07:00"),
			CreatedAt:      s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			ExpiresAt:      s.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

// RevokeSession deactivates one of the actor's own sessions by ID
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetActorFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	actorID, err := uuid.Parse(claims.ActorID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid session id")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.sessions.RevokeByID(r.Context(), sessionID, actorID, ip); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Session not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to revoke session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
