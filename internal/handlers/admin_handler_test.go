package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type mockSessionAdmin struct {
	ListActiveFunc func(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error)
	RevokeByIDFunc func(ctx context.Context, sessionID, actorID uuid.UUID, ipAddress string) error
	RevokeAllFunc  func(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error)
}

func (m *mockSessionAdmin) ListActive(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, actorID)
	}
	return []*models.ActiveSession{}, nil
}

func (m *mockSessionAdmin) RevokeByID(ctx context.Context, sessionID, actorID uuid.UUID, ipAddress string) error {
	if m.RevokeByIDFunc != nil {
		return m.RevokeByIDFunc(ctx, sessionID, actorID, ipAddress)
	}
	return models.ErrNotFound
}

func (m *mockSessionAdmin) RevokeAll(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error) {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, actorID, ipAddress)
	}
	return 0, nil
}

func adminSessionRouter(sessions *mockSessionAdmin) chi.Router {
	h := handlers.NewAdminHandler(nil, nil, nil, nil, sessions, nil)

	r := chi.NewRouter()
	r.Get("/admin/actors/{id}/sessions", h.ListActorSessions)
	r.Delete("/admin/actors/{id}/sessions", h.RevokeActorSessions)
	r.Delete("/admin/actors/{id}/sessions/{sessionID}", h.RevokeActorSession)
	return r
}

func TestAdminListActorSessions_ReturnsSessions(t *testing.T) {
	actorID := uuid.New()
	now := time.Now()
	sessions := &mockSessionAdmin{
		ListActiveFunc: func(ctx context.Context, id uuid.UUID) ([]*models.ActiveSession, error) {
			assert.Equal(t, actorID, id)
			return []*models.ActiveSession{{
				ID:             uuid.New(),
				ActorID:        id,
				IPAddress:      "192.168.1.1",
				DeviceType:     "desktop",
				Browser:        "Firefox",
				OS:             "Linux",
				Active:         true,
				LastActivityAt: now,
				ExpiresAt:      now.Add(time.Hour),
				CreatedAt:      now,
			}}, nil
		},
	}
	router := adminSessionRouter(sessions)

	req := httptest.NewRequest(http.MethodGet, "/admin/actors/"+actorID.String()+"/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "192.168.1.1")
	assert.NotContains(t, rec.Body.String(), "credential")
}

func TestAdminListActorSessions_InvalidActorID(t *testing.T) {
	router := adminSessionRouter(&mockSessionAdmin{})

	req := httptest.NewRequest(http.MethodGet, "/admin/actors/not-a-uuid/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRevokeActorSession_Success(t *testing.T) {
	actorID := uuid.New()
	sessionID := uuid.New()
	revoked := false
	sessions := &mockSessionAdmin{
		RevokeByIDFunc: func(ctx context.Context, sID, aID uuid.UUID, ipAddress string) error {
			assert.Equal(t, sessionID, sID)
			assert.Equal(t, actorID, aID)
			revoked = true
			return nil
		},
	}
	router := adminSessionRouter(sessions)

	req := httptest.NewRequest(http.MethodDelete, "/admin/actors/"+actorID.String()+"/sessions/"+sessionID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, revoked)
}

func TestAdminRevokeActorSession_UnknownSessionNotFound(t *testing.T) {
	router := adminSessionRouter(&mockSessionAdmin{})

	req := httptest.NewRequest(http.MethodDelete, "/admin/actors/"+uuid.New().String()+"/sessions/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRevokeActorSessions_ReturnsCount(t *testing.T) {
	actorID := uuid.New()
	sessions := &mockSessionAdmin{
		RevokeAllFunc: func(ctx context.Context, aID uuid.UUID, ipAddress string) (int64, error) {
			assert.Equal(t, actorID, aID)
			return 3, nil
		},
	}
	router := adminSessionRouter(sessions)

	req := httptest.NewRequest(http.MethodDelete, "/admin/actors/"+actorID.String()+"/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"revoked":3`)
}
