package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	users   *memUsers
	metrics *observability.Metrics
	admin   *domain.User
	agent   *domain.User
}

func newTestServer(t *testing.T, pingers map[string]handlers.Pinger) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	tickets := &memTickets{rows: map[string]*domain.Ticket{}}
	users := &memUsers{byID: map[string]*domain.User{}}
	notifications := &memNotifications{}
	dispatcher := events.NewInMemoryDispatcher()

	notifyCfg := config.NotificationConfig{
		SuppressSelf:         true,
		EnforceReadOwnership: true,
		InboxLimit:           20,
		DispatchAttempts:     1,
	}
	authSvc := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}, users)
	notifier := service.NewNotificationService(notifications, dispatcher, metrics, logger, notifyCfg)
	ticketSvc := service.NewTicketService(service.TicketDependencies{
		TicketRepo: tickets,
		UserRepo:   users,
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	admin, err := authSvc.EnsureUser(context.Background(), "Ada Admin", "admin@example.com", "secret-admin", domain.RoleAdmin)
	require.NoError(t, err)
	agent, err := authSvc.EnsureUser(context.Background(), "Alex Agent", "alex@example.com", "secret-agent", domain.RoleAgent)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{JSONDecoder: handlers.DecodeStrictJSON})
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-service", "test", pingers, metrics),
		Users:          handlers.NewUsersHandler(authSvc),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Notifications:  handlers.NewNotificationsHandler(service.NewInboxService(notifications, notifyCfg)),
		Dashboard:      handlers.NewDashboardHandler(service.NewDashboardService(&memDashboard{tickets: tickets}, ticketSvc)),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), authSvc),
	})
	return &testServer{app: app, users: users, metrics: metrics, admin: admin, agent: agent}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status)
	var payload struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.Token)
	return payload.Token
}

type ticketBody struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AssignedTo *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"assignedTo"`
	CreatedBy *struct {
		ID string `json:"id"`
	} `json:"createdBy"`
	ActivityLogs []struct {
		Action      string  `json:"action"`
		Field       *string `json:"field"`
		OldValue    *string `json:"oldValue"`
		NewValue    *string `json:"newValue"`
		PerformedBy struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"performedBy"`
	} `json:"activityLogs"`
}

func decodeTicket(t *testing.T, env envelope) ticketBody {
	t.Helper()
	var body ticketBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Pinger{"postgres": stubPinger{}, "redis": stubPinger{err: errDown}})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, env := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "ok", env.Error.Details["postgres"])
	assert.Equal(t, errDown.Error(), env.Error.Details["redis"])

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/health/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, http.MethodGet, "/api/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", "secret-admin")
	agentToken := s.login(t, "alex@example.com", "secret-agent")

	status, env := s.do(t, http.MethodPost, "/api/tickets", adminToken, map[string]any{
		"title":       "VPN down",
		"description": "Cannot reach the office network",
		"priority":    "High",
		"assignedTo":  s.agent.ID,
	})
	require.Equal(t, http.StatusCreated, status)
	created := decodeTicket(t, env)
	assert.Equal(t, "Open", created.Status)
	require.NotNil(t, created.AssignedTo)
	assert.Equal(t, "Alex Agent", created.AssignedTo.Name)
	require.Len(t, created.ActivityLogs, 1)
	assert.Equal(t, "CREATED", created.ActivityLogs[0].Action)
	assert.Equal(t, "Ada Admin", created.ActivityLogs[0].PerformedBy.Name)

	status, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	status, env = s.do(t, http.MethodPut, "/api/tickets/"+created.ID, agentToken, map[string]any{"status": "Pending"})
	require.Equal(t, http.StatusOK, status)
	updated := decodeTicket(t, env)
	assert.Equal(t, "Pending", updated.Status)
	require.Len(t, updated.ActivityLogs, 2)
	last := updated.ActivityLogs[1]
	assert.Equal(t, "STATUS_CHANGED", last.Action)
	require.NotNil(t, last.OldValue)
	require.NotNil(t, last.NewValue)
	assert.Equal(t, "Open", *last.OldValue)
	assert.Equal(t, "Pending", *last.NewValue)

	// agent changed their own ticket, so no new notification
	_, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", agentToken, nil)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	status, _ = s.do(t, http.MethodPut, "/api/tickets/"+created.ID, adminToken, map[string]any{"priority": "Low"})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/notifications", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	var inbox []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Message string `json:"message"`
		Read    bool   `json:"read"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	require.Len(t, inbox, 2)
	assert.Equal(t, "Ticket priority changed to Low", inbox[0].Message)
	assert.Equal(t, "A new ticket has been assigned to you", inbox[1].Message)

	status, _ = s.do(t, http.MethodPost, "/api/notifications/read/"+inbox[0].ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(t, http.MethodPost, "/api/notifications/read/"+inbox[0].ID, agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"read":true`)

	_, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", agentToken, nil)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	status, env = s.do(t, http.MethodDelete, "/api/tickets/"+created.ID, agentToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, http.MethodDelete, "/api/tickets/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/tickets/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateRejectsUnknownFields(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", "secret-admin")

	status, env := s.do(t, http.MethodPost, "/api/tickets", adminToken, map[string]any{"title": "Broken chair"})
	require.Equal(t, http.StatusCreated, status)
	created := decodeTicket(t, env)

	status, env = s.do(t, http.MethodPut, "/api/tickets/"+created.ID, adminToken, `{"status":"Closed","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/tickets/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Open", decodeTicket(t, env).Status)
}

func TestAgentCannotReassign(t *testing.T) {
	s := newTestServer(t, nil)
	agentToken := s.login(t, "alex@example.com", "secret-agent")

	status, env := s.do(t, http.MethodPost, "/api/tickets", agentToken, map[string]any{"title": "Monitor flickers"})
	require.Equal(t, http.StatusCreated, status)
	created := decodeTicket(t, env)
	require.NotNil(t, created.AssignedTo)
	assert.Equal(t, s.agent.ID, created.AssignedTo.ID)

	status, _ = s.do(t, http.MethodPut, "/api/tickets/"+created.ID, agentToken, map[string]any{"assignedTo": s.admin.ID})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPut, "/api/tickets/"+created.ID+"/assign", agentToken, map[string]any{"agentId": s.admin.ID})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAssignShortcutLogsAndNotifies(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", "secret-admin")
	agentToken := s.login(t, "alex@example.com", "secret-agent")

	_, env := s.do(t, http.MethodPost, "/api/tickets", adminToken, map[string]any{"title": "Laptop request"})
	created := decodeTicket(t, env)
	assert.Nil(t, created.AssignedTo)

	status, env := s.do(t, http.MethodPut, "/api/tickets/"+created.ID+"/assign", adminToken, map[string]any{"agentId": s.agent.ID})
	require.Equal(t, http.StatusOK, status)
	assigned := decodeTicket(t, env)
	require.Len(t, assigned.ActivityLogs, 2)
	assert.Equal(t, "ASSIGNED", assigned.ActivityLogs[1].Action)
	assert.Nil(t, assigned.ActivityLogs[1].OldValue)

	_, env = s.do(t, http.MethodGet, "/api/notifications", agentToken, nil)
	assert.Contains(t, string(env.Data), "A ticket has been assigned to you")

	status, env = s.do(t, http.MethodGet, "/api/tickets", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	var list []ticketBody
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestDashboardsAreRoleGated(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.login(t, "admin@example.com", "secret-admin")
	agentToken := s.login(t, "alex@example.com", "secret-agent")

	status, _ := s.do(t, http.MethodGet, "/api/dashboard/admin", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodGet, "/api/dashboard/agent", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	_, _ = s.do(t, http.MethodPost, "/api/tickets", agentToken, map[string]any{"title": "Password reset"})

	status, env := s.do(t, http.MethodGet, "/api/dashboard/agent", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	var board struct {
		Total   int          `json:"total"`
		Open    int          `json:"open"`
		Tickets []ticketBody `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &board))
	assert.Equal(t, 1, board.Total)
	assert.Equal(t, 1, board.Open)
	assert.Len(t, board.Tickets, 1)

	status, env = s.do(t, http.MethodGet, "/api/dashboard/admin", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"totalTickets":1`)

	status, env = s.do(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "alex@example.com")
	assert.NotContains(t, string(env.Data), "admin@example.com")
}

func TestRequestsAreCounted(t *testing.T) {
	s := newTestServer(t, nil)
	_, _ = s.do(t, http.MethodGet, "/api/tickets", "", nil)

	snap := s.metrics.Snapshot()
	var unauthorized int64
	for key, n := range snap.Requests {
		if strings.HasSuffix(key, "|GET|401") {
			unauthorized += n
		}
	}
	assert.Equal(t, int64(1), unauthorized)
	assert.Equal(t, int64(1), snap.Errors["/api/tickets|GET|UNAUTHORIZED"])
}
