package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/simdesk/internal/auth"
	"github.com/odyssey-erp/simdesk/internal/observability"
	"github.com/odyssey-erp/simdesk/internal/platform/db"
	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
	"github.com/odyssey-erp/simdesk/internal/sims"
	"github.com/odyssey-erp/simdesk/internal/view"
)

type testApp struct {
	server  *httptest.Server
	client  *http.Client
	authSvc *auth.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithLogger(t, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestAppWithLogger(t *testing.T, logger *slog.Logger) *testApp {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, fmt.Sprintf("file:app_router_%d?mode=memory&cache=shared", time.Now().UnixNano()), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	sessions := shared.NewSessionManager(redisClient, "simdesk_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	metrics := observability.NewMetrics()

	authSvc := auth.NewService(auth.NewRepository(conn), auth.WithBcryptCost(bcrypt.MinCost))
	authHandler := auth.NewHandler(logger, authSvc, templates, sessions, csrf, metrics)
	authHandler.SetLoginLimit(1000)
	guard := rbac.Middleware{Logger: logger}
	simsHandler := sims.NewHandler(logger, sims.NewService(sims.NewRepository(conn), sims.WithLogger(logger), sims.WithRecorder(metrics)), templates, csrf, guard)

	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    authHandler,
		SimsHandler:    simsHandler,
		Metrics:        metrics,
		Checks: map[string]HealthChecker{
			"redis": func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar := newJar()
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{server: server, client: client, authSvc: authSvc}
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (a *testApp) csrfToken(t *testing.T, path string) string {
	t.Helper()
	_, body := a.get(t, path)
	m := csrfPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "csrf token missing on %s", path)
	return m[1]
}

func (a *testApp) login(t *testing.T, username, password string) {
	t.Helper()
	token := a.csrfToken(t, "/login")
	resp, _ := a.post(t, "/login", url.Values{"username": {username}, "password": {password}, "csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
}

func TestHealthzReportsFailingCheck(t *testing.T) {
	handler := healthHandler(map[string]HealthChecker{
		"store": func(*http.Request) error { return errors.New("down") },
	})
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"down"`)
}

func TestRootRedirectsAnonymousToLogin(t *testing.T) {
	a := newTestApp(t)
	resp, _ := a.get(t, "/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestSecurityHeadersAndStatic(t *testing.T) {
	a := newTestApp(t)
	resp, _ := a.get(t, "/login")
	assert.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp, body := a.get(t, "/static/css/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/css"))
	assert.Contains(t, body, ".badge-active")
}

func TestPostWithoutCSRFIsRejected(t *testing.T) {
	a := newTestApp(t)
	_, err := a.authSvc.EnsureDefaultAdmin(context.Background(), "admin", "changeme")
	require.NoError(t, err)

	resp, _ := a.post(t, "/login", url.Values{"username": {"admin"}, "password": {"changeme"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoleGatedFlow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	_, err := a.authSvc.EnsureDefaultAdmin(ctx, "admin", "changeme")
	require.NoError(t, err)
	_, err = a.authSvc.CreateUser(ctx, "viewer", "viewerpass", rbac.RoleViewer)
	require.NoError(t, err)

	a.login(t, "admin", "changeme")
	token := a.csrfToken(t, "/sims/add")
	resp, _ := a.post(t, "/sims/add", url.Values{
		"imei": {"111"}, "imsi": {"222"}, "carrier": {"Acme"}, "issue_date": {"2024-01-01"}, "status": {"active"},
		"csrf_token": {token},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	simPath := resp.Header.Get("Location")

	_, body := a.get(t, simPath)
	assert.Contains(t, body, "SIM card 111 created")
	assert.Contains(t, body, "Delete")

	token = a.csrfToken(t, "/dashboard")
	resp, _ = a.post(t, "/logout", url.Values{"csrf_token": {token}})
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = a.get(t, "/dashboard")
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	a.login(t, "viewer", "viewerpass")
	_, body = a.get(t, "/sims?search=acme")
	assert.Contains(t, body, "111")

	token = a.csrfToken(t, simPath)
	resp, _ = a.post(t, "/sims/add", url.Values{
		"imei": {"333"}, "imsi": {"444"}, "carrier": {"Acme"}, "issue_date": {"2024-01-01"},
		"csrf_token": {token},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	_, body = a.get(t, "/dashboard")
	assert.Contains(t, body, "You do not have permission to perform this action")
	assert.Contains(t, body, `<span class="value">1</span>`)

	_, body = a.get(t, "/metrics")
	assert.Contains(t, body, `simdesk_login_attempts_total{outcome="success"} 2`)
	assert.Contains(t, body, `simdesk_sim_writes_total{op="create"} 1`)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRequestsAreLoggedOnceThroughSlog(t *testing.T) {
	var stdlog lockedBuffer
	prev := log.Writer()
	log.SetOutput(&stdlog)
	t.Cleanup(func() { log.SetOutput(prev) })

	var out lockedBuffer
	a := newTestAppWithLogger(t, slog.New(slog.NewJSONHandler(&out, nil)))

	resp, _ := a.get(t, "/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, strings.Count(out.String(), `"msg":"http request"`), out.String())
	assert.Contains(t, out.String(), `"path":"/login"`)
	assert.Empty(t, stdlog.String())
}
