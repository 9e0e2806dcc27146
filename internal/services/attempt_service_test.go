package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestAttempts(repo *services.MockAttemptRepository, gate *services.MockBlocklistGate, alerts *services.MockAlertCorrelator, eventRepo *services.MockEventRepository) *services.AttemptService {
	if gate == nil {
		gate = &services.MockBlocklistGate{}
	}
	if alerts == nil {
		alerts = &services.MockAlertCorrelator{}
	}
	if eventRepo == nil {
		eventRepo = &services.MockEventRepository{}
	}
	return services.NewAttemptService(repo, newTestConfig(nil), gate, alerts, newTestEventService(eventRepo, nil), testLogger())
}

func TestAttemptServiceCanAttemptLogin_AllowsUnderLimit(t *testing.T) {
	repo := &services.MockAttemptRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 2, nil
		},
	}
	service := newTestAttempts(repo, nil, nil, nil)

	decision := service.CanAttemptLogin(context.Background(), "192.168.1.1")

	assert.True(t, decision.Allowed)
	assert.Equal(t, 3, decision.RemainingAttempts)
}

func TestAttemptServiceCanAttemptLogin_BlockedIPDeniedFirst(t *testing.T) {
	gate := &services.MockBlocklistGate{
		IsBlockedFunc: func(ctx context.Context, ip string) bool { return true },
	}
	repo := &services.MockAttemptRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			t.Fatal("rate gate must not run for a blocked ip")
			return 0, nil
		},
	}
	service := newTestAttempts(repo, gate, nil, nil)

	decision := service.CanAttemptLogin(context.Background(), "10.0.0.1")

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.FailureReasonIPBlocked, decision.Reason)
}

func TestAttemptServiceCanAttemptLogin_RateLimitedWithWaitHint(t *testing.T) {
	repo := &services.MockAttemptRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 5, nil
		},
	}
	service := newTestAttempts(repo, nil, nil, nil)

	decision := service.CanAttemptLogin(context.Background(), "192.168.1.1")

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.FailureReasonRateLimited, decision.Reason)
	assert.Equal(t, 60, decision.WaitSeconds)
}

func TestAttemptServiceCanAttemptLogin_CounterFailureFailsOpen(t *testing.T) {
	repo := &services.MockAttemptRepository{
		CountAttemptsByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 0, assert.AnError
		},
	}
	service := newTestAttempts(repo, nil, nil, nil)

	decision := service.CanAttemptLogin(context.Background(), "192.168.1.1")

	assert.True(t, decision.Allowed)
}

func TestAttemptServiceRecordFailure_BelowThresholdNoBlock(t *testing.T) {
	gate := &services.MockBlocklistGate{}
	repo := &services.MockAttemptRepository{
		CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 2, nil
		},
	}
	service := newTestAttempts(repo, gate, nil, nil)

	result, err := service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonInvalidPassword)

	assert.NoError(t, err)
	assert.False(t, result.ShouldBlock)
	assert.Equal(t, 2, result.FailedAttemptsInWindow)
	assert.Equal(t, 0, gate.AutoBlockCalls)
}

func TestAttemptServiceRecordFailure_ThresholdTriggersAutoBlock(t *testing.T) {
	gate := &services.MockBlocklistGate{}
	repo := &services.MockAttemptRepository{
		CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 10, nil
		},
	}
	service := newTestAttempts(repo, gate, nil, nil)

	result, err := service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonInvalidPassword)

	assert.NoError(t, err)
	assert.True(t, result.ShouldBlock)
	assert.Equal(t, 1, gate.AutoBlockCalls)
}

func TestAttemptServiceRecordFailure_EventSeverityEscalates(t *testing.T) {
	cases := []struct {
		failures int
		severity string
	}{
		{1, models.SeverityLow},
		{3, models.SeverityMedium},
		{5, models.SeverityHigh},
		{10, models.SeverityCritical},
	}

	for _, tc := range cases {
		var recorded *models.SecurityEvent
		eventRepo := &services.MockEventRepository{
			InsertFunc: func(ctx context.Context, e *models.SecurityEvent) (*models.SecurityEvent, error) {
				recorded = e
				out := *e
				out.ID = uuid.New()
				return &out, nil
			},
		}
		repo := &services.MockAttemptRepository{
			CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
				return tc.failures, nil
			},
		}
		service := newTestAttempts(repo, nil, nil, eventRepo)

		_, err := service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonInvalidPassword)

		assert.NoError(t, err)
		assert.Equal(t, tc.severity, recorded.Severity, "failures=%d", tc.failures)
	}
}

func TestAttemptServiceRecordFailure_RateLimitDenialTypedEvent(t *testing.T) {
	var recorded *models.SecurityEvent
	eventRepo := &services.MockEventRepository{
		InsertFunc: func(ctx context.Context, e *models.SecurityEvent) (*models.SecurityEvent, error) {
			recorded = e
			out := *e
			out.ID = uuid.New()
			return &out, nil
		},
	}
	service := newTestAttempts(&services.MockAttemptRepository{}, nil, nil, eventRepo)

	_, err := service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonRateLimited)

	assert.NoError(t, err)
	assert.Equal(t, models.EventTypeRateLimitExceeded, recorded.EventType)

	_, err = service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonInvalidPassword)

	assert.NoError(t, err)
	assert.Equal(t, models.EventTypeLoginFailure, recorded.EventType)
}

func TestAttemptServiceRecordFailure_RunsAlertCorrelation(t *testing.T) {
	alerts := &services.MockAlertCorrelator{}
	repo := &services.MockAttemptRepository{}
	service := newTestAttempts(repo, nil, alerts, nil)

	_, err := service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonInvalidPassword)

	assert.NoError(t, err)
	assert.Equal(t, 1, alerts.Calls)
}

func TestAttemptServiceRecordFailure_CorrelationFailureDoesNotPropagate(t *testing.T) {
	alerts := &services.MockAlertCorrelator{
		CheckAndCreateAlertsFunc: func(ctx context.Context, ip, email string) error {
			return assert.AnError
		},
	}
	service := newTestAttempts(&services.MockAttemptRepository{}, nil, alerts, nil)

	_, err := service.RecordFailure(context.Background(), "192.168.1.1", "a@example.com", "curl/8", models.FailureReasonInvalidPassword)

	assert.NoError(t, err)
}

func TestAttemptServiceRecordSuccess_WritesAttemptAndEvent(t *testing.T) {
	var attempt *models.LoginAttempt
	var event *models.SecurityEvent
	repo := &services.MockAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, a *models.LoginAttempt) error {
			attempt = a
			return nil
		},
	}
	eventRepo := &services.MockEventRepository{
		InsertFunc: func(ctx context.Context, e *models.SecurityEvent) (*models.SecurityEvent, error) {
			event = e
			out := *e
			out.ID = uuid.New()
			return &out, nil
		},
	}
	service := newTestAttempts(repo, nil, nil, eventRepo)

	actorID := uuid.New()
	err := service.RecordSuccess(context.Background(), "192.168.1.1", "a@example.com", "Mozilla/5.0", actorID)

	assert.NoError(t, err)
	assert.True(t, attempt.Success)
	assert.Equal(t, actorID, *attempt.ActorID)
	assert.Equal(t, models.EventTypeLoginSuccess, event.EventType)
}
