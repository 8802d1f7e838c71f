// Package backend is the HTTP client for the hospitality backend service.
// It carries the auth verifier and the remote account operations; it never
// touches local session state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hotelgate/internal/auth"
)

// GenericMessage is reported when the backend gives no usable message.
const GenericMessage = "internal error"

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the origin at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type AuthResult struct {
	Tokens auth.Tokens
	User   *auth.User
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	HotelID  string `json:"hotelId,omitempty"`
}

type authResponse struct {
	Token        string     `json:"token"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         *auth.User `json:"user"`
}

func (a authResponse) tokens() auth.Tokens {
	t := auth.Tokens{AccessToken: a.Token, RefreshToken: a.RefreshToken}
	if t.AccessToken == "" {
		t.AccessToken = a.AccessToken
	}
	return t
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: out.tokens(), User: out.User}, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: out.tokens(), User: out.User}, nil
}

// Verify asks the backend who owns token. The backend may answer with the
// user object itself or wrapped as {"user": {...}}.
func (c *Client) Verify(ctx context.Context, token string) (*auth.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		User *auth.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}
	var u auth.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", auth.ErrTransport, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: user record without id", auth.ErrTransport)
	}
	return &u, nil
}

// Refresh trades a refresh token for a new token pair. The backend may omit
// the refresh token, in which case the old one stays in use.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	var out authResponse
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &out); err != nil {
		return auth.Tokens{}, err
	}
	t := out.tokens()
	if t.AccessToken == "" {
		return auth.Tokens{}, fmt.Errorf("%w: refresh response without token", auth.ErrTransport)
	}
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	return t, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, struct{}{}, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email}, &out)
	return out.Message, err
}

func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) (string, error) {
	var out messageResponse
	body := map[string]string{"token": resetToken, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/reset-password", "", body, &out)
	return out.Message, err
}

func (c *Client) ChangePassword(ctx context.Context, token, current, next string) (string, error) {
	var out messageResponse
	body := map[string]string{"currentPassword": current, "newPassword": next}
	err := c.do(ctx, http.MethodPost, "/auth/change-password", token, body, &out)
	return out.Message, err
}

// do performs one request. Network and decode failures wrap
// auth.ErrTransport; non-2xx statuses come back as *Error.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", auth.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", auth.ErrTransport, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := GenericMessage
		var m messageResponse
		if json.Unmarshal(data, &m) == nil && m.Message != "" {
			msg = m.Message
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", auth.ErrTransport, path, err)
	}
	return nil
}

// Message picks the text a caller should show for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return GenericMessage
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}
