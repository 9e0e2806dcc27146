package integration

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/aegisauth/aegis/pkg/logger"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		slog.Error("failed to set up test database", slog.Any("error", err))
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	_ = testDB.Teardown(ctx)
	os.Exit(code)
}

type serviceGraph struct {
	config    *services.ConfigService
	events    *services.EventService
	blocklist *services.BlocklistService
	attempts  *services.AttemptService
	sessions  *services.SessionService
	alerts    *services.AlertService
}

// newServices builds the full service graph against the containerized
// database, with notifications disabled.
func newServices(t *testing.T) *serviceGraph {
	t.Helper()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	_, configRepo, eventRepo, attemptRepo, blockedIPRepo, sessionRepo, alertRepo := InitializeRepositories(testDB.DB)

	configService := services.NewConfigService(configRepo, log)
	require.NoError(t, configService.Bootstrap(context.Background()))

	eventService := services.NewEventService(eventRepo, services.NoopNotifier{}, logger.NewSecurityLogger(log), log)
	blocklistService := services.NewBlocklistService(blockedIPRepo, configService, eventService, log)
	alertService := services.NewAlertService(alertRepo, attemptRepo, eventService, configService, services.NoopNotifier{}, log)
	attemptService := services.NewAttemptService(attemptRepo, configService, blocklistService, alertService, eventService, log)
	sessionService := services.NewSessionService(sessionRepo, configService, eventService, log)

	return &serviceGraph{
		config:    configService,
		events:    eventService,
		blocklist: blocklistService,
		attempts:  attemptService,
		sessions:  sessionService,
		alerts:    alertService,
	}
}

func TestIntegration_FailureWindowTriggersAutoBlock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	g := newServices(t)

	ip := TestIP(1)
	email, _ := TestAccount("autoblock")

	var blocked bool
	for i := 0; i < 10; i++ {
		result, err := g.attempts.RecordFailure(ctx, ip, email, "integration-test", models.FailureReasonInvalidPassword)
		require.NoError(t, err)
		if result.ShouldBlock {
			blocked = true
		}
	}

	assert.True(t, blocked, "tenth failure should cross the auto-block threshold")
	assert.True(t, g.blocklist.IsBlocked(ctx, ip))

	decision := g.attempts.CanAttemptLogin(ctx, ip)
	assert.False(t, decision.Allowed)
	assert.Equal(t, models.FailureReasonIPBlocked, decision.Reason)
}

func TestIntegration_AlertRaisedForBruteForce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	g := newServices(t)

	ip := TestIP(2)
	email, _ := TestAccount("bruteforce")
	require.NoError(t, SeedFailedAttempts(ctx, testDB.Pool, ip, email, 12))

	require.NoError(t, g.alerts.CheckAndCreateAlerts(ctx, ip, email))

	active, err := g.alerts.FindActive(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.AlertTypeBruteForce, active[0].AlertType)
	assert.Equal(t, models.SeverityHigh, active[0].Severity)

	// Re-running correlation must not duplicate the open alert
	require.NoError(t, g.alerts.CheckAndCreateAlerts(ctx, ip, email))
	active, err = g.alerts.FindActive(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	g := newServices(t)

	email, password := TestAccount("sessions")
	account, err := SeedAccount(ctx, testDB.Pool, email, password, "user", true)
	require.NoError(t, err)

	credential := "integration-refresh-credential"
	created, err := g.sessions.Create(ctx, account.ID, credential, TestIP(3), "integration-test")
	require.NoError(t, err)
	assert.NotEqual(t, credential, created.CredentialHash)

	found, err := g.sessions.FindByCredential(ctx, credential)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, g.sessions.Revoke(ctx, credential, TestIP(3), account.ID))

	_, err = g.sessions.FindByCredential(ctx, credential)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestIntegration_ConfigUpdateVisibleImmediately(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	g := newServices(t)

	email, password := TestAccount("admin")
	admin, err := SeedAccount(ctx, testDB.Pool, email, password, "admin", true)
	require.NoError(t, err)

	_, err = g.config.Update(ctx, models.ConfigKeyMaxAttemptsPerMinute, "3", admin.ID)
	require.NoError(t, err)

	got := g.config.GetInt(ctx, models.ConfigKeyMaxAttemptsPerMinute, 5)
	assert.Equal(t, 3, got)
}
