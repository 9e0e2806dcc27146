package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type mockAuthService struct {
	LoginFunc     func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, *models.AdmissionDecision, error)
	RefreshFunc   func(ctx context.Context, credential, ipAddress, userAgent string) (*services.LoginResult, error)
	LogoutFunc    func(ctx context.Context, credential, ipAddress string, actorID uuid.UUID) error
	LogoutAllFunc func(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, *models.AdmissionDecision, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
	}
	return nil, &models.AdmissionDecision{Allowed: true}, models.ErrUnauthorized
}

func (m *mockAuthService) Refresh(ctx context.Context, credential, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, credential, ipAddress, userAgent)
	}
	return nil, models.ErrUnauthorized
}

func (m *mockAuthService) Logout(ctx context.Context, credential, ipAddress string, actorID uuid.UUID) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, credential, ipAddress, actorID)
	}
	return nil
}

func (m *mockAuthService) LogoutAll(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error) {
	if m.LogoutAllFunc != nil {
		return m.LogoutAllFunc(ctx, actorID, ipAddress)
	}
	return 0, nil
}

type mockSessionLister struct{}

func (m *mockSessionLister) ListActive(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error) {
	return []*models.ActiveSession{}, nil
}

func (m *mockSessionLister) RevokeByID(ctx context.Context, sessionID, actorID uuid.UUID, ipAddress string) error {
	return models.ErrNotFound
}

func postLogin(handler *handlers.AuthHandler, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.RemoteAddr = "192.168.1.1:54321"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rr := httptest.NewRecorder()
	handler.Login(rr, req)
	return rr
}

func TestAuthHandlerLogin_Success(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, ua string) (*services.LoginResult, *models.AdmissionDecision, error) {
			assert.Equal(t, "user@example.com", email)
			assert.Equal(t, "192.168.1.1", ip)
			return &services.LoginResult{AccessToken: "token", RefreshCredential: "refresh", ExpiresIn: 900},
				&models.AdmissionDecision{Allowed: true}, nil
		},
	}
	handler := handlers.NewAuthHandler(service, &mockSessionLister{}, nil)

	rr := postLogin(handler, handlers.LoginRequest{Email: "User@Example.com", Password: "pw123456"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "access_token")
}

func TestAuthHandlerLogin_InvalidBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&mockAuthService{}, &mockSessionLister{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	handler.Login(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandlerLogin_MissingEmailRejected(t *testing.T) {
	handler := handlers.NewAuthHandler(&mockAuthService{}, &mockSessionLister{}, nil)

	rr := postLogin(handler, handlers.LoginRequest{Password: "pw123456"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandlerLogin_BlockedIPReturns403(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, ua string) (*services.LoginResult, *models.AdmissionDecision, error) {
			return nil, &models.AdmissionDecision{Allowed: false, Reason: models.FailureReasonIPBlocked}, models.ErrIPBlocked
		},
	}
	handler := handlers.NewAuthHandler(service, &mockSessionLister{}, nil)

	rr := postLogin(handler, handlers.LoginRequest{Email: "user@example.com", Password: "pw123456"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "IP_BLOCKED")
}

func TestAuthHandlerLogin_RateLimitedIncludesWaitHint(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip, ua string) (*services.LoginResult, *models.AdmissionDecision, error) {
			return nil, &models.AdmissionDecision{Allowed: false, Reason: models.FailureReasonRateLimited, WaitSeconds: 60}, models.ErrRateLimitExceeded
		},
	}
	handler := handlers.NewAuthHandler(service, &mockSessionLister{}, nil)

	rr := postLogin(handler, handlers.LoginRequest{Email: "user@example.com", Password: "pw123456"})

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(60), resp["wait_seconds"])
}

func TestAuthHandlerLogin_CredentialFailuresCollapse(t *testing.T) {
	// Unknown email and wrong password must be indistinguishable.
	for _, outcome := range []error{models.ErrUnauthorized, models.ErrAccountInactive} {
		service := &mockAuthService{
			LoginFunc: func(ctx context.Context, email, password, ip, ua string) (*services.LoginResult, *models.AdmissionDecision, error) {
				return nil, &models.AdmissionDecision{Allowed: true}, outcome
			},
		}
		handler := handlers.NewAuthHandler(service, &mockSessionLister{}, nil)

		rr := postLogin(handler, handlers.LoginRequest{Email: "user@example.com", Password: "pw123456"})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid email or password")
	}
}

func TestAuthHandlerRefresh_ExpiredSession(t *testing.T) {
	service := &mockAuthService{
		RefreshFunc: func(ctx context.Context, credential, ip, ua string) (*services.LoginResult, error) {
			return nil, models.ErrSessionExpired
		},
	}
	handler := handlers.NewAuthHandler(service, &mockSessionLister{}, nil)

	payload, _ := json.Marshal(handlers.RefreshRequest{RefreshToken: "stale"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	handler.Refresh(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "expired")
}
