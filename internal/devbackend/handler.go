package devbackend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hotelgate/internal/auth"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler exposes svc under the /auth/* paths the gateway expects.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	h := &Handler{svc: svc, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /auth/login", h.login)
	h.mux.HandleFunc("POST /auth/register", h.register)
	h.mux.HandleFunc("GET /auth/me", h.me)
	h.mux.HandleFunc("POST /auth/refresh", h.refresh)
	h.mux.HandleFunc("POST /auth/logout", h.logout)
	h.mux.HandleFunc("POST /auth/forgot-password", h.forgotPassword)
	h.mux.HandleFunc("POST /auth/reset-password", h.resetPassword)
	h.mux.HandleFunc("POST /auth/change-password", h.changePassword)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type tokenResponse struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	User         *auth.User `json:"user,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, tokens, err := h.svc.Authenticate(req.Email, req.Password)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	h.logger.Info("login", "user", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: tokens.AccessToken, RefreshToken: tokens.RefreshToken, User: user})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		HotelID  string `json:"hotelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	user, tokens, err := h.svc.Register(req.Name, req.Email, req.Password, req.HotelID)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			writeMessage(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("register", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: tokens.AccessToken, RefreshToken: tokens.RefreshToken, User: user})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided")
		return
	}
	user, err := h.svc.Me(token)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeMessage(w, http.StatusBadRequest, "Refresh token is required")
		return
	}
	tokens, err := h.svc.Refresh(req.RefreshToken)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided")
		return
	}
	if err := h.svc.Logout(token); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}
	tok, _ := h.svc.ForgotPassword(req.Email)
	if tok != "" {
		// No mailer in the dev backend; the token goes to the log.
		h.logger.Info("password reset requested", "email", req.Email, "reset_token", tok)
	}
	writeMessage(w, http.StatusOK, "If the account exists, a reset link has been sent")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Token and password are required")
		return
	}
	if err := h.svc.ResetPassword(req.Token, req.Password); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided")
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, "New password is required")
		return
	}
	switch err := h.svc.ChangePassword(token, req.CurrentPassword, req.NewPassword); {
	case err == nil:
		writeMessage(w, http.StatusOK, "Password changed")
	case errors.Is(err, ErrInvalidCredentials):
		writeMessage(w, http.StatusBadRequest, "Current password is incorrect")
	default:
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
