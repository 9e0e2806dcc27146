package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aegisauth/aegis/internal/auth"
	"github.com/aegisauth/aegis/internal/models"
	pkghttp "github.com/aegisauth/aegis/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConfigServiceInterface defines the config operations on the admin surface
type ConfigServiceInterface interface {
	List(ctx context.Context) ([]*models.SecurityConfig, error)
	Update(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error)
}

// EventServiceInterface defines the event log operations on the admin surface
type EventServiceInterface interface {
	Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error)
	MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, notes *string) (*models.SecurityEvent, error)
	Stats(ctx context.Context, windowDays int) (*models.EventStats, error)
}

// BlocklistServiceInterface defines the block registry operations on the admin surface
type BlocklistServiceInterface interface {
	ListActive(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error)
	BlockManually(ctx context.Context, ipAddress, reason string, adminID uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error)
	Unblock(ctx context.Context, ipAddress string, adminID uuid.UUID) error
	Stats(ctx context.Context) (*models.BlocklistStats, error)
}

// AlertServiceInterface defines the alert workflow operations on the admin surface
type AlertServiceInterface interface {
	List(ctx context.Context, statuses []string, limit, offset int) ([]*models.SecurityAlert, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, resolution *string, actorID uuid.UUID) (*models.SecurityAlert, error)
	Assign(ctx context.Context, id, assigneeID uuid.UUID) (*models.SecurityAlert, error)
	CountActiveBySeverity(ctx context.Context) (map[string]int, error)
}

// SessionAdminInterface defines the per-actor session operations on the
// admin surface
type SessionAdminInterface interface {
	ListActive(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error)
	RevokeByID(ctx context.Context, sessionID, actorID uuid.UUID, ipAddress string) error
	RevokeAll(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error)
}

// AdminHandler handles the admin security surface
type AdminHandler struct {
	config    ConfigServiceInterface
	events    EventServiceInterface
	blocklist BlocklistServiceInterface
	alerts    AlertServiceInterface
	sessions  SessionAdminInterface
	ipConfig  *pkghttp.IPConfig
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(config ConfigServiceInterface, events EventServiceInterface, blocklist BlocklistServiceInterface, alerts AlertServiceInterface, sessions SessionAdminInterface, ipConfig *pkghttp.IPConfig) *AdminHandler {
	return &AdminHandler{
		config:    config,
		events:    events,
		blocklist: blocklist,
		alerts:    alerts,
		sessions:  sessions,
		ipConfig:  ipConfig,
	}
}

// Request DTOs

// UpdateConfigRequest represents the request body for a config update
type UpdateConfigRequest struct {
	Value string `json:"value" validate:"required"`
}

// ReviewEventRequest represents the request body for reviewing an event
type ReviewEventRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// BlockIPRequest represents the request body for a manual block
type BlockIPRequest struct {
	IPAddress       string `json:"ip_address" validate:"required,ip"`
	Reason          string `json:"reason" validate:"required,min=3,max=500"`
	Permanent       bool   `json:"permanent"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,gte=1,lte=525600"`
}

// UpdateAlertStatusRequest represents the request body for an alert transition
type UpdateAlertStatusRequest struct {
	Status     string  `json:"status" validate:"required,oneof=investigating resolved dismissed"`
	Resolution *string `json:"resolution,omitempty"`
}

// AssignAlertRequest represents the request body for assigning an alert
type AssignAlertRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

// adminActor resolves the authenticated admin's ID from request context
func adminActor(r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetActorFromContext(r)
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.ActorID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads limit/offset query params with sane bounds
func parsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// ListConfig returns every security config entry
func (h *AdminHandler) ListConfig(w http.ResponseWriter, r *http.Request) {
	configs, err := h.config.List(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list configuration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})
}

// UpdateConfig changes one security config value
func (h *AdminHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	actorID, ok := adminActor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" {
		pkghttp.WriteBadRequest(w, "Missing config key")
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	cfg, err := h.config.Update(r.Context(), key, req.Value, actorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Unknown config key")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to update configuration")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// ListEvents returns filtered security events
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	q := r.URL.Query()

	var filter models.EventFilter
	if v := q.Get("event_type"); v != "" {
		filter.EventType = &v
	}
	if v := q.Get("severity"); v != "" {
		filter.Severity = &v
	}
	if v := q.Get("ip_address"); v != "" {
		filter.IPAddress = &v
	}
	if v := q.Get("reviewed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Reviewed = &b
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	events, total, err := h.events.Query(r.Context(), filter, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ReviewEvent marks an event reviewed exactly once
func (h *AdminHandler) ReviewEvent(w http.ResponseWriter, r *http.Request) {
	actorID, ok := adminActor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid event id")
		return
	}

	var req ReviewEventRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid request body")
			return
		}
	}

	event, err := h.events.MarkReviewed(r.Context(), eventID, actorID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyReviewed):
			pkghttp.WriteConflict(w, "Event has already been reviewed")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Event not found")
		default:
			pkghttp.WriteInternalError(w, "Failed to review event")
		}
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// EventStats returns event aggregates over a trailing window
func (h *AdminHandler) EventStats(w http.ResponseWriter, r *http.Request) {
	windowDays := 7
	if v := r.URL.Query().Get("window_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			windowDays = n
		}
	}

	stats, err := h.events.Stats(r.Context(), windowDays)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to aggregate event stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListBlockedIPs returns the active blocks
func (h *AdminHandler) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	blocks, err := h.blocklist.ListActive(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list blocked IPs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"blocked_ips": blocks})
}

// BlockIP creates a manual block
func (h *AdminHandler) BlockIP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := adminActor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req BlockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var expiresAt *time.Time
	if !req.Permanent && req.DurationMinutes > 0 {
		t := time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute)
		expiresAt = &t
	}

	block, err := h.blocklist.BlockManually(r.Context(), req.IPAddress, req.Reason, actorID, req.Permanent, expiresAt)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to block IP")
		return
	}

	writeJSON(w, http.StatusCreated, block)
}

// UnblockIP lifts an active block
func (h *AdminHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	actorID, ok := adminActor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	ip := chi.URLParam(r, "ip")
	if ip == "" {
		pkghttp.WriteBadRequest(w, "Missing IP address")
		return
	}

	if err := h.blocklist.Unblock(r.Context(), ip, actorID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No active block for this IP")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to unblock IP")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BlocklistStats summarizes the block registry
func (h *AdminHandler) BlocklistStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.blocklist.Stats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to aggregate blocklist stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListAlerts returns alerts filtered by status
func (h *AdminHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	var statuses []string
	if v := r.URL.Query().Get("status"); v != "" {
		statuses = []string{v}
	}

	alerts, err := h.alerts.List(r.Context(), statuses, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// GetAlert returns one alert
func (h *AdminHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid alert id")
		return
	}

	alert, err := h.alerts.GetByID(r.Context(), alertID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Alert not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load alert")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// UpdateAlertStatus moves an alert through its lifecycle
func (h *AdminHandler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := adminActor(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid alert id")
		return
	}

	var req UpdateAlertStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	alert, err := h.alerts.UpdateStatus(r.Context(), alertID, req.Status, req.Resolution, actorID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTransition):
			pkghttp.WriteConflict(w, "Invalid alert status transition")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Alert not found")
		default:
			pkghttp.WriteInternalError(w, "Failed to update alert")
		}
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// AssignAlert hands an alert to a reviewer
func (h *AdminHandler) AssignAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid alert id")
		return
	}

	var req AssignAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	assigneeID, err := uuid.Parse(req.AssigneeID)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid assignee id")
		return
	}

	alert, err := h.alerts.Assign(r.Context(), alertID, assigneeID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTransition):
			pkghttp.WriteConflict(w, "Alert can no longer be assigned")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Alert not found")
		default:
			pkghttp.WriteInternalError(w, "Failed to assign alert")
		}
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// AlertStats summarizes open alerts by severity
func (h *AdminHandler) AlertStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.alerts.CountActiveBySeverity(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to aggregate alert stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"active_by_severity": counts})
}

// ListActorSessions lists an actor's active sessions
func (h *AdminHandler) ListActorSessions(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid actor id")
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

// RevokeActorSession revokes one of an actor's sessions by ID
func (h *AdminHandler) RevokeActorSession(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid actor id")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
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

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Session revoked"})
}

// RevokeActorSessions revokes all of an actor's active sessions
func (h *AdminHandler) RevokeActorSessions(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid actor id")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	n, err := h.sessions.RevokeAll(r.Context(), actorID, ip)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to revoke sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": n})
}
