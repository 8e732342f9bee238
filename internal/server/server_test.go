package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"residence-backend/internal/auth"
	"residence-backend/internal/bootstrap"
	"residence-backend/internal/config"
	"residence-backend/internal/credential"
	"residence-backend/internal/events"
	"residence-backend/internal/models"
	"residence-backend/internal/seed"
	"residence-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	app    *fiber.App
	svc    *bootstrap.Services
	events *events.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TIMEZONE", "UTC")
	cfg, err := config.Load()
	require.NoError(t, err)

	rec := &events.Recorder{}
	svc, err := bootstrap.New(cfg, store.NewMemoryBackend(), rec, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	_, err = seed.Run(context.Background(), svc.Store, svc.Codec, seed.Options{AdminPassword: "changeme"}, zap.NewNop())
	require.NoError(t, err)

	return &testEnv{app: New(svc), svc: svc, events: rec}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	u, err := e.svc.Users.Get(context.Background(), userID)
	require.NoError(t, err)
	tok, err := auth.GenerateToken(testSecret, u, time.Now())
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	resp, body = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestResidents_ListFilterSort(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/residents?sort=name&direction=desc", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Resident
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 3)
	assert.Equal(t, "Maria", list[0].FirstName)

	resp, body = env.do(t, http.MethodGet, "/api/residents?building=Building%20B", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "B-205", list[0].UnitNumber)

	resp, _ = env.do(t, http.MethodGet, "/api/residents?active=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/residents/buildings", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["Building A","Building B","Building C"]`, string(body))
}

func TestResidents_CreateUpdateDelete(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/residents", "", map[string]any{
		"firstName": "Anna", "lastName": "Lee", "unitNumber": "A-102", "building": "Building A",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created models.Resident
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, strings.HasPrefix(created.QRCode, "data:image/png;base64,"))

	resp, body = env.do(t, http.MethodPut, "/api/residents/"+created.ID, "", map[string]any{"phone": "+1-555-0401"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodPost, "/api/residents", "", map[string]any{"firstName": "Anna"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), `"error"`)

	resp, _ = env.do(t, http.MethodDelete, "/api/residents/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodDelete, "/api/residents/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Resident not found"}`, string(body))
}

func TestResidents_SecurityCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	guard := env.token(t, "2")

	resp, _ := env.do(t, http.MethodDelete, "/api/residents/1", guard, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/residents/1", guard, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCredentialPNG(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/residents/1/credential.png", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	text, err := credential.DecodeImageBytes(body)
	require.NoError(t, err)
	assert.Contains(t, text, `"residentId":"1"`)
}

func TestScanner_ScanAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	guard := env.token(t, "2")

	r, err := env.svc.Residents.Get(context.Background(), "3")
	require.NoError(t, err)
	text, err := env.svc.Codec.Encode(env.svc.Codec.Issue(r))
	require.NoError(t, err)

	resp, body := env.do(t, http.MethodPost, "/api/scanner/scan", guard, map[string]any{"data": text})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var res struct {
		Status string            `json:"status"`
		Log    *models.AccessLog `json:"log"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "granted", res.Status)
	require.NotNil(t, res.Log)
	assert.Equal(t, "Robert Brown", res.Log.SecurityPersonnel)
	assert.Len(t, env.events.Events(), 1)

	resp, body = env.do(t, http.MethodPost, "/api/scanner/scan", guard, map[string]any{"data": `{"residentId":"3"}`})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Invalid or expired QR code")

	resp, _ = env.do(t, http.MethodPost, "/api/scanner/scan", guard, map[string]any{"data": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/dashboard/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.DashboardStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 3, stats.TotalResidents)
	assert.Len(t, stats.RecentActivity, 3)
	assert.Equal(t, "David Johnson", stats.RecentActivity[0].ResidentName)
}

func TestScanner_ScanImage(t *testing.T) {
	env := newTestEnv(t)

	r, err := env.svc.Residents.Get(context.Background(), "1")
	require.NoError(t, err)
	png, err := credential.DecodeDataURI(r.QRCode)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "badge.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("accessType", "exit"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scanner/scan-image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := env.app.Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"status":"granted"`)
	assert.Contains(t, string(body), `"accessType":"exit"`)
}

func TestAccessLogs_QueryAndExport(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/access-logs", "", map[string]any{
		"residentId": "3", "residentName": "David Johnson", "unitNumber": "C-312",
		"accessType": "entry", "method": "manual", "location": "Side Gate",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/access-logs?limit=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []models.AccessLog
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "3", logs[0].ResidentID)

	resp, body = env.do(t, http.MethodGet, "/api/access-logs?method=qr_code", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.Len(t, logs, 2)

	resp, _ = env.do(t, http.MethodGet, "/api/access-logs?access_type=sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/access-logs", "", map[string]any{"residentId": "3", "accessType": "entry", "method": "teleport"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/access-logs/export", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
	assert.Equal(t, "PK", string(body[:2]))
}

func TestGuests_Flow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/guests", "", map[string]any{
		"name": "Tom Baker", "hostResidentId": "2", "purpose": "Dinner",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var g models.Guest
	require.NoError(t, json.Unmarshal(body, &g))

	resp, _ = env.do(t, http.MethodPost, "/api/guests/"+g.ID+"/depart", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/guests/"+g.ID+"/arrive", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"status":"arrived"`)

	resp, body = env.do(t, http.MethodGet, "/api/access-logs?method=guest", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Guest of Maria Garcia")
}

func TestAudit_UndoDelete(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodDelete, "/api/residents/2", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/audit-logs?entity_id=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []models.AuditLog
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "System Administrator", logs[0].UserName)

	resp, _ = env.do(t, http.MethodPost, "/api/audit-logs/"+logs[0].ID+"/undo", env.token(t, "2"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/audit-logs/"+logs[0].ID+"/undo", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = env.do(t, http.MethodGet, "/api/residents/2", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/audit-logs/"+logs[0].ID+"/undo", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAudit_UndoUpdateOfDeletedResidentConflicts(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/api/residents/2", "", map[string]any{"phone": "+1-555-0000"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, _ = env.do(t, http.MethodDelete, "/api/residents/2", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/audit-logs?entity_id=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []models.AuditLog
	require.NoError(t, json.Unmarshal(body, &logs))
	var updateID string
	for _, l := range logs {
		if l.Action == models.AuditActionUpdate {
			updateID = l.ID
		}
	}
	require.NotEmpty(t, updateID)

	resp, body = env.do(t, http.MethodPost, "/api/audit-logs/"+updateID+"/undo", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotContains(t, string(body), "Unexpected server error")

	resp, body = env.do(t, http.MethodGet, "/api/audit-logs?entity_id=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &logs))
	for _, l := range logs {
		assert.False(t, l.IsUndone, l.Action)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "changeme"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	resp, body = env.do(t, http.MethodGet, "/api/auth/me", out.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"username":"admin"`)
	assert.NotContains(t, string(body), "passwordHash")
}
