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

func newTestAlerts(repo *services.MockAlertRepository, attempts *services.MockAttemptRepository, notifier *services.MockNotifier) *services.AlertService {
	if attempts == nil {
		attempts = &services.MockAttemptRepository{}
	}
	if notifier == nil {
		notifier = &services.MockNotifier{}
	}
	events := newTestEventService(&services.MockEventRepository{}, nil)
	return services.NewAlertService(repo, attempts, events, newTestConfig(nil), notifier, testLogger())
}

func TestAlertServiceCheckAndCreateAlerts_BelowThresholdsNoAlert(t *testing.T) {
	repo := &services.MockAlertRepository{
		InsertFunc: func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
			t.Fatal("no alert expected below thresholds")
			return nil, nil
		},
	}
	attempts := &services.MockAttemptRepository{
		CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 3, nil
		},
	}
	service := newTestAlerts(repo, attempts, nil)

	err := service.CheckAndCreateAlerts(context.Background(), "192.168.1.1", "a@example.com")

	assert.NoError(t, err)
}

func TestAlertServiceCheckAndCreateAlerts_MediumBandRaisesFailedLogins(t *testing.T) {
	var raised *models.SecurityAlert
	notifier := &services.MockNotifier{}
	repo := &services.MockAlertRepository{
		InsertFunc: func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
			raised = alert
			out := *alert
			out.ID = uuid.New()
			out.Status = models.AlertStatusActive
			return &out, nil
		},
	}
	attempts := &services.MockAttemptRepository{
		CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 6, nil
		},
	}
	service := newTestAlerts(repo, attempts, notifier)

	err := service.CheckAndCreateAlerts(context.Background(), "192.168.1.1", "a@example.com")

	assert.NoError(t, err)
	assert.Equal(t, models.AlertTypeMultipleFailedLogins, raised.AlertType)
	assert.Equal(t, models.SeverityMedium, raised.Severity)
	assert.Equal(t, 0, notifier.AlertCalls)
}

func TestAlertServiceCheckAndCreateAlerts_HighBandRaisesBruteForceAndNotifies(t *testing.T) {
	var raised *models.SecurityAlert
	notifier := &services.MockNotifier{}
	repo := &services.MockAlertRepository{
		InsertFunc: func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
			raised = alert
			out := *alert
			out.ID = uuid.New()
			out.Status = models.AlertStatusActive
			return &out, nil
		},
	}
	attempts := &services.MockAttemptRepository{
		CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 12, nil
		},
	}
	service := newTestAlerts(repo, attempts, notifier)

	err := service.CheckAndCreateAlerts(context.Background(), "192.168.1.1", "a@example.com")

	assert.NoError(t, err)
	assert.Equal(t, models.AlertTypeBruteForce, raised.AlertType)
	assert.Equal(t, models.SeverityHigh, raised.Severity)
	assert.Equal(t, "192.168.1.1", *raised.IPAddress)
	assert.Equal(t, 1, notifier.AlertCalls)
}

func TestAlertServiceCheckAndCreateAlerts_OpenAlertSuppressesDuplicate(t *testing.T) {
	repo := &services.MockAlertRepository{
		HasOpenAlertFunc: func(ctx context.Context, alertType, ip string) (bool, error) {
			return true, nil
		},
		InsertFunc: func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
			t.Fatal("duplicate alert must be suppressed")
			return nil, nil
		},
	}
	attempts := &services.MockAttemptRepository{
		CountFailuresByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 12, nil
		},
	}
	service := newTestAlerts(repo, attempts, nil)

	err := service.CheckAndCreateAlerts(context.Background(), "192.168.1.1", "a@example.com")

	assert.NoError(t, err)
}

func TestAlertServiceCheckAndCreateAlerts_RateLimitAbuseRaisesAPIAbuse(t *testing.T) {
	var raised *models.SecurityAlert
	repo := &services.MockAlertRepository{
		InsertFunc: func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
			raised = alert
			out := *alert
			out.ID = uuid.New()
			return &out, nil
		},
	}
	attempts := &services.MockAttemptRepository{
		CountRateLimitedByIPFunc: func(ctx context.Context, ip string, since time.Time) (int, error) {
			return 15, nil
		},
	}
	service := newTestAlerts(repo, attempts, nil)

	err := service.CheckAndCreateAlerts(context.Background(), "192.168.1.1", "a@example.com")

	assert.NoError(t, err)
	assert.Equal(t, models.AlertTypeAPIAbuse, raised.AlertType)
	assert.Equal(t, models.SeverityMedium, raised.Severity)
}

func TestAlertServiceUpdateStatus_ValidTransition(t *testing.T) {
	id := uuid.New()
	repo := &services.MockAlertRepository{
		GetByIDFunc: func(ctx context.Context, alertID uuid.UUID) (*models.SecurityAlert, error) {
			return &models.SecurityAlert{ID: id, Status: models.AlertStatusActive}, nil
		},
		UpdateStatusFunc: func(ctx context.Context, alertID uuid.UUID, status string, resolution *string, resolvedBy *uuid.UUID, resolvedAt *time.Time) (*models.SecurityAlert, error) {
			assert.Equal(t, models.AlertStatusInvestigating, status)
			assert.Nil(t, resolvedBy)
			assert.Nil(t, resolvedAt)
			return &models.SecurityAlert{ID: alertID, Status: status}, nil
		},
	}
	service := newTestAlerts(repo, nil, nil)

	updated, err := service.UpdateStatus(context.Background(), id, models.AlertStatusInvestigating, nil, uuid.New())

	assert.NoError(t, err)
	assert.Equal(t, models.AlertStatusInvestigating, updated.Status)
}

func TestAlertServiceUpdateStatus_ResolveStampsResolution(t *testing.T) {
	id := uuid.New()
	actorID := uuid.New()
	resolution := "false positive"
	repo := &services.MockAlertRepository{
		GetByIDFunc: func(ctx context.Context, alertID uuid.UUID) (*models.SecurityAlert, error) {
			return &models.SecurityAlert{ID: id, Status: models.AlertStatusInvestigating}, nil
		},
		UpdateStatusFunc: func(ctx context.Context, alertID uuid.UUID, status string, res *string, resolvedBy *uuid.UUID, resolvedAt *time.Time) (*models.SecurityAlert, error) {
			assert.Equal(t, models.AlertStatusResolved, status)
			assert.Equal(t, resolution, *res)
			assert.Equal(t, actorID, *resolvedBy)
			assert.NotNil(t, resolvedAt)
			return &models.SecurityAlert{ID: alertID, Status: status}, nil
		},
	}
	service := newTestAlerts(repo, nil, nil)

	_, err := service.UpdateStatus(context.Background(), id, models.AlertStatusResolved, &resolution, actorID)

	assert.NoError(t, err)
}

func TestAlertServiceUpdateStatus_TerminalAlertCannotReopen(t *testing.T) {
	repo := &services.MockAlertRepository{
		GetByIDFunc: func(ctx context.Context, alertID uuid.UUID) (*models.SecurityAlert, error) {
			return &models.SecurityAlert{ID: alertID, Status: models.AlertStatusResolved}, nil
		},
	}
	service := newTestAlerts(repo, nil, nil)

	_, err := service.UpdateStatus(context.Background(), uuid.New(), models.AlertStatusActive, nil, uuid.New())

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAlertServiceUpdateStatus_InvestigatingCannotGoBackToActive(t *testing.T) {
	repo := &services.MockAlertRepository{
		GetByIDFunc: func(ctx context.Context, alertID uuid.UUID) (*models.SecurityAlert, error) {
			return &models.SecurityAlert{ID: alertID, Status: models.AlertStatusInvestigating}, nil
		},
	}
	service := newTestAlerts(repo, nil, nil)

	_, err := service.UpdateStatus(context.Background(), uuid.New(), models.AlertStatusActive, nil, uuid.New())

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAlertServiceAssign_ForcesInvestigating(t *testing.T) {
	assigneeID := uuid.New()
	repo := &services.MockAlertRepository{
		GetByIDFunc: func(ctx context.Context, alertID uuid.UUID) (*models.SecurityAlert, error) {
			return &models.SecurityAlert{ID: alertID, Status: models.AlertStatusActive}, nil
		},
		AssignFunc: func(ctx context.Context, alertID, assignee uuid.UUID) (*models.SecurityAlert, error) {
			assert.Equal(t, assigneeID, assignee)
			return &models.SecurityAlert{ID: alertID, Status: models.AlertStatusInvestigating, AssignedTo: &assignee}, nil
		},
	}
	service := newTestAlerts(repo, nil, nil)

	alert, err := service.Assign(context.Background(), uuid.New(), assigneeID)

	assert.NoError(t, err)
	assert.Equal(t, models.AlertStatusInvestigating, alert.Status)
}

func TestAlertServiceAssign_TerminalAlertRejected(t *testing.T) {
	repo := &services.MockAlertRepository{
		GetByIDFunc: func(ctx context.Context, alertID uuid.UUID) (*models.SecurityAlert, error) {
			return &models.SecurityAlert{ID: alertID, Status: models.AlertStatusDismissed}, nil
		},
	}
	service := newTestAlerts(repo, nil, nil)

	_, err := service.Assign(context.Background(), uuid.New(), uuid.New())

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
