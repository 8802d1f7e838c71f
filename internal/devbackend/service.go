// Package devbackend is a local stand-in for the hospitality backend's auth
// endpoints. It issues HS256 access tokens and opaque refresh tokens and
// keeps every account in memory.
package devbackend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hotelgate/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Options struct {
	Secret     string
	TokenTTL   time.Duration
	RefreshTTL time.Duration
}

type grant struct {
	userID    string
	expiresAt time.Time
}

type Service struct {
	store  *Store
	secret []byte
	opts   Options
	now    func() time.Time

	mu        sync.Mutex
	refresh   map[string]grant
	resets    map[string]grant
	revoked   map[string]time.Time
	nextPrune time.Time
}

const pruneInterval = time.Minute

func NewService(store *Store, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:   store,
		secret:  []byte(opts.Secret),
		opts:    opts,
		now:     time.Now,
		refresh: make(map[string]grant),
		resets:  make(map[string]grant),
		revoked: make(map[string]time.Time),
	}
}

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Service) Authenticate(email, password string) (*auth.User, auth.Tokens, error) {
	user, hash, err := s.store.GetByEmail(email)
	if err != nil {
		return nil, auth.Tokens{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, auth.Tokens{}, ErrInvalidCredentials
	}
	tokens, err := s.issue(user)
	if err != nil {
		return nil, auth.Tokens{}, err
	}
	return user, tokens, nil
}

// Register creates an account with the default "staff" role.
func (s *Service) Register(name, email, password, hotelID string) (*auth.User, auth.Tokens, error) {
	user, err := s.store.Create(auth.User{
		Name:    name,
		Email:   email,
		HotelID: hotelID,
		Role:    auth.Role{Name: "staff", Permissions: []auth.Permission{}},
	}, password)
	if err != nil {
		return nil, auth.Tokens{}, err
	}
	tokens, err := s.issue(user)
	if err != nil {
		return nil, auth.Tokens{}, err
	}
	return user, tokens, nil
}

func (s *Service) issue(user *auth.User) (auth.Tokens, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return auth.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.refresh[refresh] = grant{userID: user.ID, expiresAt: now.Add(s.opts.RefreshTTL)}
	s.mu.Unlock()

	return auth.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	s.mu.Lock()
	s.pruneLocked()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims, nil
}

// Me resolves an access token to the current user record.
func (s *Service) Me(tokenStr string) (*auth.User, error) {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}
	user, _, err := s.store.GetByID(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// Refresh rotates a refresh token: the old one is spent either way.
func (s *Service) Refresh(refreshToken string) (auth.Tokens, error) {
	s.mu.Lock()
	g, ok := s.refresh[refreshToken]
	delete(s.refresh, refreshToken)
	s.pruneLocked()
	s.mu.Unlock()
	if !ok || !s.now().Before(g.expiresAt) {
		return auth.Tokens{}, ErrInvalidToken
	}
	user, _, err := s.store.GetByID(g.userID)
	if err != nil {
		return auth.Tokens{}, ErrInvalidToken
	}
	return s.issue(user)
}

// pruneLocked drops spent grants and revocations of tokens that have expired
// anyway. It runs at most once per pruneInterval. s.mu must be held.
func (s *Service) pruneLocked() {
	now := s.now()
	if now.Before(s.nextPrune) {
		return
	}
	s.nextPrune = now.Add(pruneInterval)
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
	for _, m := range []map[string]grant{s.refresh, s.resets} {
		for tok, g := range m {
			if !now.Before(g.expiresAt) {
				delete(m, tok)
			}
		}
	}
}

// Logout revokes the access token so /auth/me rejects it from now on.
func (s *Service) Logout(tokenStr string) error {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()
	return nil
}

// ForgotPassword returns a reset token for a known email. Unknown emails get
// an empty token and no error so callers cannot probe for accounts.
func (s *Service) ForgotPassword(email string) (string, error) {
	user, _, err := s.store.GetByEmail(email)
	if err != nil {
		return "", nil
	}
	tok := uuid.NewString()
	s.mu.Lock()
	s.resets[tok] = grant{userID: user.ID, expiresAt: s.now().Add(time.Hour)}
	s.mu.Unlock()
	return tok, nil
}

func (s *Service) ResetPassword(resetToken, password string) error {
	s.mu.Lock()
	g, ok := s.resets[resetToken]
	delete(s.resets, resetToken)
	s.mu.Unlock()
	if !ok || !s.now().Before(g.expiresAt) {
		return ErrInvalidToken
	}
	return s.store.SetPassword(g.userID, password)
}

func (s *Service) ChangePassword(tokenStr, current, next string) error {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return err
	}
	_, hash, err := s.store.GetByID(claims.UserID)
	if err != nil {
		return ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	return s.store.SetPassword(claims.UserID, next)
}
