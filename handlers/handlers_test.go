package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/storage/storagetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	db := storagetest.NewDB(t)
	log := zap.NewNop()

	stats := services.NewStatsService(db, log)
	invites := services.NewInviteService(db, log)
	svc := Services{
		Students: services.NewStudentService(db, log),
		Reels:    services.NewReelService(db, log),
		Stats:    stats,
		Invites:  invites,
		Brands:   services.NewBrandService(db, log),
		Exports:  services.NewExportService(stats, invites, nil, log),
		Audit:    services.NewAuditService(db),
	}

	app := fiber.New()
	SetupPublicRoutes(app, db, log)
	SetupRoutes(app, svc, log)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, userID, roles string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if roles != "" {
		req.Header.Set("X-User-Roles", roles)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func createBrand(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/admin/brands", "boss", "Admin",
		map[string]any{"name": "Acme Shorts", "rate_per_100k": "12.50"})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["id"].(string)
}

func TestHealthNeedsNoUser(t *testing.T) {
	app := newTestApp(t)
	status, body := call(t, app, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	app := newTestApp(t)
	status, body := call(t, app, http.MethodGet, "/reels", "", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	app := newTestApp(t)
	status, body := call(t, app, http.MethodPost, "/admin/brands", "alice", "student",
		map[string]any{"name": "Nope", "rate_per_100k": "1"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])
}

func TestReelLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	brandID := createBrand(t, app)

	status, _ := call(t, app, http.MethodPost, "/me", "alice", "", map[string]any{"username": "alice", "email": "alice@example.com"})
	require.Equal(t, fiber.StatusOK, status)

	status, reel := call(t, app, http.MethodPost, "/reels", "alice", "",
		map[string]any{"brand_id": brandID, "video_url": "https://videos.example/r/1"})
	require.Equal(t, fiber.StatusCreated, status, reel)
	reelID := reel["id"].(string)
	assert.Equal(t, "PENDING", reel["status"])

	status, res := call(t, app, http.MethodPost, "/admin/reels/"+reelID+"/actions", "boss", "admin",
		map[string]any{"action": "APPROVE", "published_url": "https://ig.example/p/1", "views": 200000})
	require.Equal(t, fiber.StatusOK, status, res)
	assert.EqualValues(t, 200000, res["credited_views"])

	status, res = call(t, app, http.MethodPost, "/admin/reels/"+reelID+"/actions", "boss", "admin",
		map[string]any{"action": "APPROVE", "published_url": "https://ig.example/p/1"})
	assert.Equal(t, fiber.StatusConflict, status, res)

	status, ledger := call(t, app, http.MethodGet, "/reels/"+reelID+"/history", "alice", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 200000, ledger["credited_views"])
	assert.Equal(t, "25", ledger["revenue"])
	assert.Len(t, ledger["steps"], 2)

	status, _ = call(t, app, http.MethodGet, "/reels/"+reelID+"/history", "mallory", "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, list := call(t, app, http.MethodGet, "/reels?status=approved", "alice", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, list["total"])
}

func TestSubmitReelValidation(t *testing.T) {
	app := newTestApp(t)
	status, body := call(t, app, http.MethodPost, "/reels", "alice", "", map[string]any{"video_url": "not a url"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation", body["code"])
}

func TestUnknownReelIsNotFound(t *testing.T) {
	app := newTestApp(t)
	status, body := call(t, app, http.MethodPost, "/admin/reels/missing/actions", "boss", "admin",
		map[string]any{"action": "LOCK_VIEWS"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}

func TestOverpaymentIsRejected(t *testing.T) {
	app := newTestApp(t)
	status, _ := call(t, app, http.MethodPost, "/me", "alice", "", map[string]any{"username": "alice"})
	require.Equal(t, fiber.StatusOK, status)

	status, body := call(t, app, http.MethodPost, "/admin/invites/alice/payments", "boss", "admin",
		map[string]any{"month": "2024-05", "amount": "0.50"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "invariant", body["code"])

	status, sum := call(t, app, http.MethodGet, "/invites/summary", "alice", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "0", sum["paid"])
}

func TestExportWithoutStorageConflicts(t *testing.T) {
	app := newTestApp(t)
	status, body := call(t, app, http.MethodPost, "/admin/exports/2024-05", "boss", "admin", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", body["code"])
}
