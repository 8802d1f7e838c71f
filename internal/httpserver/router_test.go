package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelgate/internal/auth"
	"hotelgate/internal/backend"
	"hotelgate/internal/config"
	"hotelgate/internal/devbackend"
	"hotelgate/internal/logging"
	"hotelgate/internal/metrics"
	"hotelgate/internal/session"
	"hotelgate/internal/tokenstore"
)

type env struct {
	router  http.Handler
	store   *tokenstore.MemoryStore
	metrics *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	users := devbackend.NewStore()
	for _, u := range []struct {
		user auth.User
		pw   string
	}{
		{auth.User{ID: "u-root", Email: "root@example.com", Role: auth.Role{Name: "super_admin"}}, "root"},
		{auth.User{ID: "u1", Email: "manager@example.com", Role: auth.Role{Name: "manager", Permissions: []auth.Permission{}}}, "manager"},
		{auth.User{ID: "u-desk", Email: "desk@example.com", Role: auth.Role{Name: "receptionist"}, CustomPermissions: auth.Permissions("user.update")}, "desk"},
	} {
		_, err := users.Create(u.user, u.pw)
		require.NoError(t, err)
	}
	upstream := httptest.NewServer(devbackend.NewHandler(
		devbackend.NewService(users, devbackend.Options{Secret: "test"}),
		logging.Discard(),
	))
	t.Cleanup(upstream.Close)

	mem := tokenstore.NewMemoryStore()
	client := backend.NewClient(upstream.URL, upstream.Client())
	manager := session.NewManager(client, tokenstore.New(mem, tokenstore.Options{}), logging.Discard(), session.Options{RefreshEnabled: true})
	m := metrics.New(prometheus.NewRegistry())

	router := NewRouter(RouterDeps{
		Logger:      logging.Discard(),
		Sessions:    manager,
		Areas:       BuildAreas(config.DefaultAreas(), auth.DefaultSuperAdminRole, manager, m, logging.Discard()),
		BackendURL:  client.BaseURL(),
		ProxyClient: upstream.Client(),
		Metrics:     m,
		CORSOrigins: []string{"http://ui.local"},
		Version:     "test",
	})
	return &env{router: router, store: mem, metrics: m}
}

// browser replays the cookies it has been given, like a real one would.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]string
}

func (e *env) browser(t *testing.T) *browser {
	return &browser{t: t, h: e.router, cookies: make(map[string]string)}
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	for name, value := range b.cookies {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	w := httptest.NewRecorder()
	b.h.ServeHTTP(w, r)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return w
}

func (b *browser) login(email, password string) {
	b.t.Helper()
	w := b.do(http.MethodPost, "/session/login", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(b.t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthz(t *testing.T) {
	w := newEnv(t).browser(t).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNoTokenRedirectsEveryArea(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/admin", "/dashboard/rooms", "/restaurant", "/front-desk/checkin"} {
		w := e.browser(t).do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"), path)
	}
}

func TestManagerDeniedAdminButGrantedDashboard(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.login("manager@example.com", "manager")

	w := b.do(http.MethodGet, "/admin/users", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = b.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Area string     `json:"area"`
		Path string     `json:"path"`
		User *auth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, "dashboard", page.Area)
	assert.Equal(t, "u1", page.User.ID)
}

func TestAdminAccessByRoleOrCustomPermission(t *testing.T) {
	e := newEnv(t)
	for _, c := range []struct{ email, pw string }{
		{"root@example.com", "root"},
		{"desk@example.com", "desk"},
	} {
		b := e.browser(t)
		b.login(c.email, c.pw)
		w := b.do(http.MethodGet, "/admin", "")
		assert.Equal(t, http.StatusOK, w.Code, c.email)
	}
}

func TestRejectedTokenRedirectsAndClears(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.cookies[tokenstore.TokenCookie] = "forged"

	w := b.do(http.MethodGet, "/restaurant", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	assert.Empty(t, b.cookies)
}

func TestLogoutClearsSession(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.login("manager@example.com", "manager")
	require.Equal(t, 1, e.store.Len())

	w := b.do(http.MethodPost, "/session/logout", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Empty(t, b.cookies)
	assert.Zero(t, e.store.Len())

	w = b.do(http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestSessionState(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)

	w := b.do(http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":null,"isAuthenticated":false,"isLoading":false}`, w.Body.String())

	b.login("manager@example.com", "manager")
	w = b.do(http.MethodGet, "/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st session.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "u1", st.User.ID)

	w = b.do(http.MethodGet, "/session?cached=1", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.IsAuthenticated)
}

func TestSessionLoginFailureMessage(t *testing.T) {
	b := newEnv(t).browser(t)
	w := b.do(http.MethodPost, "/session/login", `{"email":"manager@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid credentials"}`, w.Body.String())
	assert.Empty(t, b.cookies)
}

func TestSessionLoginValidation(t *testing.T) {
	b := newEnv(t).browser(t)
	w := b.do(http.MethodPost, "/session/login", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.do(http.MethodPost, "/session/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginReplacesPlantedSessionID(t *testing.T) {
	e := newEnv(t)
	victim := e.browser(t)
	victim.cookies[tokenstore.SessionCookie] = "chosen-in-advance"
	victim.login("root@example.com", "root")
	assert.NotEqual(t, "chosen-in-advance", victim.cookies[tokenstore.SessionCookie])

	other := e.browser(t)
	other.cookies[tokenstore.SessionCookie] = "chosen-in-advance"
	w := other.do(http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))

	w = victim.do(http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFailedLoginEndsPreviousSession(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.login("root@example.com", "root")

	w := b.do(http.MethodPost, "/session/login", `{"email":"manager@example.com","password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, b.cookies)
	assert.Zero(t, e.store.Len())

	w = b.do(http.MethodGet, "/session", "")
	assert.JSONEq(t, `{"user":null,"isAuthenticated":false,"isLoading":false}`, w.Body.String())
}

func TestBearerRequestsLeaveStoreUntouched(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.login("manager@example.com", "manager")
	require.Equal(t, 1, e.store.Len())

	w := b.do(http.MethodPost, "/api/auth/login", `{"email":"manager@example.com","password":"manager"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	for i := 0; i < 20; i++ {
		r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		r.Header.Set("Authorization", "Bearer "+login.Token)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	}
	assert.Equal(t, 1, e.store.Len())
}

func TestChangePasswordNeedsSession(t *testing.T) {
	b := newEnv(t).browser(t)
	w := b.do(http.MethodPost, "/session/change-password", `{"currentPassword":"a","newPassword":"b"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"not authenticated"}`, w.Body.String())
}

func TestProxyRelaysBackendVerbatim(t *testing.T) {
	b := newEnv(t).browser(t)

	w := b.do(http.MethodPost, "/api/auth/login", `{"email":"manager@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, w.Body.String())
	assert.Empty(t, b.cookies, "proxy routes never touch the session")

	w = b.do(http.MethodPost, "/api/auth/login", `{"email":"manager@example.com","password":"manager"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"u1"`)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.do(http.MethodGet, "/admin", "")

	w := b.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hotelgate_gate_decisions_total{area="admin",reason="no_credential",state="redirecting"} 1`)
}
