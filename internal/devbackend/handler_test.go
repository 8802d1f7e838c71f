package devbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelgate/internal/logging"
)

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandlerLoginAndMe(t *testing.T) {
	h := NewHandler(newTestService(t), logging.Discard())

	w := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"manager@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
		User         struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "u-manager", login.User.ID)

	w = do(t, h, http.MethodGet, "/auth/me", login.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u-manager","name":"Maria Manager","email":"Manager@Example.com","role":{"name":"manager","permissions":[]}}`, w.Body.String())
}

func TestHandlerInvalidCredentials(t *testing.T) {
	h := NewHandler(newTestService(t), logging.Discard())

	w := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"manager@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, w.Body.String())
}

func TestHandlerMeWithoutToken(t *testing.T) {
	h := NewHandler(newTestService(t), logging.Discard())

	w := do(t, h, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodGet, "/auth/me", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerRegisterConflict(t *testing.T) {
	h := NewHandler(newTestService(t), logging.Discard())

	w := do(t, h, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodPost, "/auth/register", "", `{"name":"A","email":"a@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerRefreshAndLogout(t *testing.T) {
	h := NewHandler(newTestService(t), logging.Discard())

	w := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"manager@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = do(t, h, http.MethodPost, "/auth/refresh", "", `{"refreshToken":"`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var fresh tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))
	assert.NotEmpty(t, fresh.Token)

	w = do(t, h, http.MethodPost, "/auth/logout", fresh.Token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/auth/me", fresh.Token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerChangePassword(t *testing.T) {
	h := NewHandler(newTestService(t), logging.Discard())

	w := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"manager@example.com","password":"secret"}`)
	var login tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = do(t, h, http.MethodPost, "/auth/change-password", login.Token, `{"currentPassword":"wrong","newPassword":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/auth/change-password", login.Token, `{"currentPassword":"secret","newPassword":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Password changed"}`, w.Body.String())
}
