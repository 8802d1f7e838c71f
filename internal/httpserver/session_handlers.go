package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hotelgate/internal/auth"
	"hotelgate/internal/backend"
	"hotelgate/internal/session"
)

// sessionResponse is the shape every mutating /session endpoint answers with.
type sessionResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

type sessionHandlers struct {
	manager *session.Manager
	logger  *slog.Logger
}

func (h *sessionHandlers) state(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cached") == "1" {
		user, err := h.manager.Cached(w, r)
		if err != nil {
			writeJSON(w, http.StatusOK, session.State{})
			return
		}
		writeJSON(w, http.StatusOK, session.State{User: user, IsAuthenticated: true})
		return
	}

	st, err := h.manager.Bootstrap(r.Context(), w, r)
	if r.Context().Err() != nil {
		return
	}
	if err != nil && !errors.Is(err, auth.ErrNoCredential) {
		h.logger.Debug("session bootstrap failed", "err", err)
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *sessionHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}
	user, err := h.manager.Login(r.Context(), w, r, req.Email, req.Password)
	h.respond(w, "login", user, "", err)
}

func (h *sessionHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req backend.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}
	user, err := h.manager.Register(r.Context(), w, r, req)
	h.respond(w, "register", user, "", err)
}

func (h *sessionHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context(), w, r); err != nil {
		h.logger.Warn("logout left persistent session behind", "err", err)
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true})
}

func (h *sessionHandlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}
	msg, err := h.manager.ForgotPassword(r.Context(), req.Email)
	h.respond(w, "forgot-password", nil, msg, err)
}

func (h *sessionHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		writeBadRequest(w, "token and password are required")
		return
	}
	msg, err := h.manager.ResetPassword(r.Context(), req.Token, req.Password)
	h.respond(w, "reset-password", nil, msg, err)
}

func (h *sessionHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeBadRequest(w, "currentPassword and newPassword are required")
		return
	}
	msg, user, err := h.manager.ChangePassword(r.Context(), w, r, req.CurrentPassword, req.NewPassword)
	h.respond(w, "change-password", user, msg, err)
}

func (h *sessionHandlers) respond(w http.ResponseWriter, op string, user *auth.User, msg string, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Message: msg, User: user})
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("session operation failed", "op", op, "err", err)
	}
	writeJSON(w, status, sessionResponse{Success: false, Message: messageFor(err)})
}

func statusFor(err error) int {
	if s := backend.StatusOf(err); s != 0 {
		return s
	}
	switch {
	case errors.Is(err, auth.ErrNoCredential),
		errors.Is(err, auth.ErrVerification),
		errors.Is(err, auth.ErrCorruptSession):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	if errors.Is(err, auth.ErrNoCredential) {
		return "not authenticated"
	}
	return backend.Message(err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
