// Package session is the authentication context: it is the only component
// that reads or writes the stored user record, and the only one that decides
// when the token store is written or cleared.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hotelgate/internal/auth"
	"hotelgate/internal/backend"
	"hotelgate/internal/tokenstore"
)

// Backend is the remote side of the session: the verifier plus the account
// operations. *backend.Client satisfies it.
type Backend interface {
	Login(ctx context.Context, email, password string) (*backend.AuthResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResult, error)
	Verify(ctx context.Context, token string) (*auth.User, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, resetToken, password string) (string, error)
	ChangePassword(ctx context.Context, token, current, next string) (string, error)
}

type Options struct {
	// RefreshEnabled allows one refresh-then-retry when the access token is
	// expired or rejected and a refresh token is stored.
	RefreshEnabled bool
}

type Manager struct {
	backend Backend
	store   *tokenstore.Store
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

func NewManager(b Backend, store *tokenstore.Store, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		backend: b,
		store:   store,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// HasCredential reports whether any storage location holds a token. It never
// touches the network.
func (m *Manager) HasCredential(r *http.Request) bool {
	tokens, _, err := m.store.Read(r)
	if err != nil {
		m.logger.Warn("token store read failed", "err", err)
	}
	return !tokens.Empty()
}

// CheckAuth verifies the stored token. With no token it returns
// auth.ErrNoCredential without a network call. On success the stored user is
// replaced; on any failure the token store is cleared. If ctx is done by the
// time the backend answers, the answer is discarded and nothing is written.
func (m *Manager) CheckAuth(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.User, error) {
	tokens, source, err := m.store.Read(r)
	if err != nil {
		m.logger.Warn("token store read failed", "err", err)
	}
	if tokens.Empty() {
		return nil, auth.ErrNoCredential
	}

	user, tokens, err := m.verify(ctx, tokens)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		m.logger.Info("session verification failed", "source", source.String(), "err", err)
		m.clear(w, r)
		return nil, err
	}

	switch source {
	case tokenstore.SourceHeader:
		// header callers hold their own token and never replay a session cookie
	case tokenstore.SourcePersistent:
		if err := m.persist(w, r, tokens, user); err != nil {
			m.logger.Warn("persist verified session", "err", err)
		}
	default:
		if err := m.establishStore(w, r, tokens, user); err != nil {
			m.logger.Warn("persist verified session", "err", err)
		}
	}
	return user, nil
}

func (m *Manager) verify(ctx context.Context, tokens auth.Tokens) (*auth.User, auth.Tokens, error) {
	canRefresh := m.opts.RefreshEnabled && tokens.RefreshToken != ""

	if canRefresh && accessTokenExpired(tokens.AccessToken, m.now()) {
		fresh, err := m.refresh(ctx, tokens.RefreshToken)
		if err != nil {
			return nil, tokens, err
		}
		user, err := m.backend.Verify(ctx, fresh.AccessToken)
		return user, fresh, classify(err)
	}

	user, err := m.backend.Verify(ctx, tokens.AccessToken)
	if err == nil {
		return user, tokens, nil
	}
	if !canRefresh || backend.StatusOf(err) != http.StatusUnauthorized {
		return nil, tokens, classify(err)
	}

	fresh, rerr := m.refresh(ctx, tokens.RefreshToken)
	if rerr != nil {
		return nil, tokens, rerr
	}
	user, err = m.backend.Verify(ctx, fresh.AccessToken)
	return user, fresh, classify(err)
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	fresh, err := m.backend.Refresh(ctx, refreshToken)
	if err != nil {
		return auth.Tokens{}, fmt.Errorf("%w: refresh: %w", auth.ErrVerification, err)
	}
	return fresh, nil
}

// classify folds backend rejections into auth.ErrVerification. Transport
// errors already wrap auth.ErrTransport.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var be *backend.Error
	if errors.As(err, &be) {
		return fmt.Errorf("%w: %w", auth.ErrVerification, err)
	}
	return err
}

// Login authenticates against the backend and, on success, starts a new
// session under a fresh session id. A failed login clears the token store.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, email, password string) (*auth.User, error) {
	res, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.clear(w, r)
		return nil, err
	}
	return m.establish(ctx, w, r, res)
}

func (m *Manager) Register(ctx context.Context, w http.ResponseWriter, r *http.Request, req backend.RegisterRequest) (*auth.User, error) {
	res, err := m.backend.Register(ctx, req)
	if err != nil {
		m.clear(w, r)
		return nil, err
	}
	return m.establish(ctx, w, r, res)
}

func (m *Manager) establish(ctx context.Context, w http.ResponseWriter, r *http.Request, res *backend.AuthResult) (*auth.User, error) {
	user, err := m.resolve(ctx, res)
	if err != nil {
		m.clear(w, r)
		return nil, err
	}
	if err := m.establishStore(w, r, res.Tokens, user); err != nil {
		m.clear(w, r)
		return nil, fmt.Errorf("store session: %w", err)
	}
	return user, nil
}

func (m *Manager) resolve(ctx context.Context, res *backend.AuthResult) (*auth.User, error) {
	if res.Tokens.Empty() {
		return nil, fmt.Errorf("%w: auth response without token", auth.ErrTransport)
	}
	if res.User != nil {
		return res.User, nil
	}
	u, err := m.backend.Verify(ctx, res.Tokens.AccessToken)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// Logout clears the token store whatever the backend says.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tokens, _, _ := m.store.Read(r)
	if !tokens.Empty() {
		if err := m.backend.Logout(ctx, tokens.AccessToken); err != nil {
			m.logger.Warn("remote logout failed", "err", err)
		}
	}
	return m.store.Clear(w, r)
}

func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	return m.backend.ForgotPassword(ctx, email)
}

func (m *Manager) ResetPassword(ctx context.Context, resetToken, password string) (string, error) {
	return m.backend.ResetPassword(ctx, resetToken, password)
}

// ChangePassword delegates to the backend and then re-verifies the session
// so the stored user reflects whatever the backend changed. Once the backend
// accepted the change the call succeeds; a failed re-verification only clears
// the session and the returned user is nil.
func (m *Manager) ChangePassword(ctx context.Context, w http.ResponseWriter, r *http.Request, current, next string) (string, *auth.User, error) {
	tokens, _, _ := m.store.Read(r)
	if tokens.Empty() {
		return "", nil, auth.ErrNoCredential
	}
	msg, err := m.backend.ChangePassword(ctx, tokens.AccessToken, current, next)
	if err != nil {
		return "", nil, err
	}
	user, err := m.CheckAuth(ctx, w, r)
	if err != nil {
		m.logger.Info("re-verify after password change", "err", err)
		return msg, nil, nil
	}
	return msg, user, nil
}

// Cached returns the persisted user without a network call. A record that
// fails to decode clears the session and reports auth.ErrCorruptSession.
func (m *Manager) Cached(w http.ResponseWriter, r *http.Request) (*auth.User, error) {
	data, err := m.store.ReadUser(r)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return nil, auth.ErrNoCredential
		}
		return nil, err
	}
	var u auth.User
	if err := json.Unmarshal(data, &u); err != nil || u.ID == "" {
		m.logger.Warn("stored user record is corrupt, clearing session", "err", err)
		m.clear(w, r)
		return nil, auth.ErrCorruptSession
	}
	return &u, nil
}

func (m *Manager) persist(w http.ResponseWriter, r *http.Request, tokens auth.Tokens, user *auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.store.Write(w, r, tokens, data)
}

func (m *Manager) establishStore(w http.ResponseWriter, r *http.Request, tokens auth.Tokens, user *auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.store.Establish(w, r, tokens, data)
}

func (m *Manager) clear(w http.ResponseWriter, r *http.Request) {
	if err := m.store.Clear(w, r); err != nil {
		m.logger.Warn("clear token store", "err", err)
	}
}
