package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelgate/internal/auth"
	"hotelgate/internal/config"
	"hotelgate/internal/logging"
)

type stubAuthn struct {
	user *auth.User
}

func (s stubAuthn) HasCredential(*http.Request) bool { return s.user != nil }

func (s stubAuthn) CheckAuth(context.Context, http.ResponseWriter, *http.Request) (*auth.User, error) {
	return s.user, nil
}

func TestBuildAreas(t *testing.T) {
	areas := BuildAreas(config.DefaultAreas(), "", stubAuthn{}, nil, logging.Discard())
	require.Len(t, areas, 4)

	admin := areas[0]
	assert.Equal(t, "/admin", admin.Prefix)
	assert.Equal(t, "/dashboard", admin.Gate.DeniedPath)
	assert.False(t, admin.Gate.Allow(&auth.User{ID: "u1", Role: auth.Role{Name: "manager"}}))
	assert.True(t, admin.Gate.Allow(&auth.User{ID: "u1", Role: auth.Role{Name: "super_admin"}}))

	dashboard := areas[1]
	assert.Equal(t, "/auth/login", dashboard.Gate.DeniedPath)
	assert.True(t, dashboard.Gate.Allow(&auth.User{ID: "u1", Role: auth.Role{Name: "manager"}}))
}

func TestContentHandlerProxiesToUI(t *testing.T) {
	var got http.Header
	ui := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer ui.Close()
	origin, err := url.Parse(ui.URL)
	require.NoError(t, err)

	user := &auth.User{
		ID:                "u1",
		Role:              auth.Role{Name: "manager", Permissions: auth.Permissions("booking.read", "user.read")},
		CustomPermissions: auth.Permissions("user.read", "user.update"),
	}
	r := httptest.NewRequest(http.MethodGet, "/dashboard/rooms", nil)
	r.Header.Set("X-Hotelgate-User", "spoofed")
	r.Header.Set("X-Hotelgate-Permissions", "system.manage.all")
	r = r.WithContext(auth.WithUser(r.Context(), user))

	w := httptest.NewRecorder()
	contentHandler(origin, "dashboard").ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", got.Get("X-Hotelgate-User"))
	assert.Equal(t, "manager", got.Get("X-Hotelgate-Role"))
	assert.Equal(t, "booking.read,user.read,user.update", got.Get("X-Hotelgate-Permissions"))
	assert.Equal(t, "dashboard", got.Get("X-Hotelgate-Area"))
}
