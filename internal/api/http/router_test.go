package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/api/http/handlers"
	"github.com/laggis/Discord-Ticket-bot/internal/auth"
	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/observability"
	"github.com/laggis/Discord-Ticket-bot/internal/service"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

const staffRole = "role-staff"

type stubTickets struct {
	closedBy []domain.Actor
}

func (s *stubTickets) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	if id != "t-1" {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return &domain.Ticket{ID: "t-1", Type: "Support", Status: domain.TicketStatusOpen, OpenedBy: domain.Identity{ID: "u-1"}}, nil
}

func (s *stubTickets) CloseTicket(_ context.Context, in service.CloseTicketInput) (*service.CloseReport, error) {
	if !in.Actor.HasAnyRole([]string{staffRole}) {
		return nil, apperrors.NewPermissionDenied("You do not have permission to close tickets.")
	}
	s.closedBy = append(s.closedBy, in.Actor)
	return &service.CloseReport{
		TicketID: in.TicketID,
		Steps:    []service.StepResult{{Name: service.StepNotifyOpener, Status: service.StepFailed, Err: errors.New("dm closed")}},
	}, nil
}

type stubModeration struct {
	bans map[string]*domain.BanRecord
}

func (s *stubModeration) BanStatus(_ context.Context, userID string) (*domain.BanRecord, error) {
	ban, ok := s.bans[userID]
	if !ok {
		return nil, apperrors.NewNotFound("ban record", nil)
	}
	return ban, nil
}

func (s *stubModeration) BanUser(_ context.Context, actor domain.Actor, target domain.Identity, reason string) (*domain.BanRecord, error) {
	if _, ok := s.bans[target.ID]; ok {
		return nil, apperrors.NewConflict("user is already banned", nil)
	}
	ban := &domain.BanRecord{UserID: target.ID, Reason: reason, BannedBy: actor.ID}
	s.bans[target.ID] = ban
	return ban, nil
}

func (s *stubModeration) UnbanUser(_ context.Context, _ domain.Actor, target domain.Identity) error {
	if _, ok := s.bans[target.ID]; !ok {
		return apperrors.NewNotFound("ban record", nil)
	}
	delete(s.bans, target.ID)
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app        *fiber.App
	tokens     *auth.TokenManager
	tickets    *stubTickets
	moderation *stubModeration
	ready      error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	srv := &testServer{
		tokens:     auth.NewTokenManager("test-secret", 5),
		tickets:    &stubTickets{},
		moderation: &stubModeration{bans: map[string]*domain.BanRecord{}},
	}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	srv.app = fiber.New()
	RegisterMiddlewares(srv.app, zap.NewNop(), metrics, 0)
	RegisterRoutes(srv.app, RouteConfig{
		Health: handlers.NewHealthHandler("ticket-bot", "test", map[string]handlers.Pinger{
			"postgres": pingFunc(func(context.Context) error { return srv.ready }),
		}),
		Admin:          handlers.NewAdminHandler(srv.tickets, srv.moderation),
		AuthMiddleware: auth.NewAuthMiddleware(srv.tokens),
		Gatherer:       reg,
		StaffRoleIDs:   []string{staffRole},
	})
	return srv
}

func (s *testServer) token(t *testing.T, actor domain.Actor) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(actor)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

var (
	operator  = domain.Actor{Identity: domain.Identity{ID: "s-1", DisplayName: "Sam"}, RoleIDs: []string{staffRole}, CanBan: true}
	bystander = domain.Actor{Identity: domain.Identity{ID: "u-9", DisplayName: "Nobody"}}
)

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])

	resp, body = srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	srv.ready = errors.New("connection refused")
	resp, body = srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/health/live", "", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "ticketbot_http_requests_total")
}

func TestAdmin_RequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/admin/tickets/t-1", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(body))

	resp, _ = srv.do(t, http.MethodGet, "/admin/tickets/t-1", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_GetTicket(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/admin/tickets/t-1", srv.token(t, operator), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "t-1", data["id"])
	assert.Equal(t, "OPEN", data["status"])

	resp, body = srv.do(t, http.MethodGet, "/admin/tickets/t-404", srv.token(t, operator), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))

	resp, body = srv.do(t, http.MethodGet, "/admin/tickets/t-1", srv.token(t, bystander), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodePermission, errorCode(body))
}

func TestAdmin_CloseTicket(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodPost, "/admin/tickets/t-1/close", srv.token(t, operator), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["degraded"])
	require.Len(t, srv.tickets.closedBy, 1)
	assert.Equal(t, "s-1", srv.tickets.closedBy[0].ID)

	resp, body = srv.do(t, http.MethodPost, "/admin/tickets/t-1/close", srv.token(t, bystander), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodePermission, errorCode(body))
}

func TestAdmin_BanLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, operator)

	resp, body := srv.do(t, http.MethodPost, "/admin/bans", token, `{"user_id":"u-2","reason":"spam"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "s-1", body["data"].(map[string]any)["banned_by"])

	resp, body = srv.do(t, http.MethodPost, "/admin/bans", token, `{"user_id":"u-2"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperrors.CodeConflict, errorCode(body))

	resp, body = srv.do(t, http.MethodGet, "/admin/bans/u-2", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "spam", body["data"].(map[string]any)["reason"])

	resp, _ = srv.do(t, http.MethodDelete, "/admin/bans/u-2", token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = srv.do(t, http.MethodDelete, "/admin/bans/u-2", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))
}

func TestAdmin_BanValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodPost, "/admin/bans", srv.token(t, operator), `{"reason":"spam"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, errorCode(body))
}

func TestAdmin_BanRequiresCapability(t *testing.T) {
	srv := newTestServer(t)
	staffOnly := domain.Actor{Identity: domain.Identity{ID: "s-2"}, RoleIDs: []string{staffRole}}

	resp, body := srv.do(t, http.MethodPost, "/admin/bans", srv.token(t, staffOnly), `{"user_id":"u-2"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodePermission, errorCode(body))
	assert.Empty(t, srv.moderation.bans)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))
}
