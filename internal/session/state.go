package session

import (
	"context"
	"net/http"

	"hotelgate/internal/auth"
)

// State is the session snapshot handed to the UI on bootstrap.
type State struct {
	User            *auth.User `json:"user"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	IsLoading       bool       `json:"isLoading"`
}

// Bootstrap runs the initial verification. IsLoading is set only while the
// verification is in flight, so the returned state always has it false.
func (m *Manager) Bootstrap(ctx context.Context, w http.ResponseWriter, r *http.Request) (*State, error) {
	st := &State{IsLoading: true}
	user, err := m.CheckAuth(ctx, w, r)
	st.IsLoading = false
	if err != nil {
		return st, err
	}
	st.User = user
	st.IsAuthenticated = user != nil
	return st, nil
}
