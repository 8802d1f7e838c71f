// Package tokenstore keeps session tokens in two places: a persistent record
// keyed by an opaque session-id cookie, and a token cookie. Reads follow a
// fixed priority order and every write goes through one path, so the two
// copies are always written together.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"hotelgate/internal/auth"
)

const (
	SessionCookie = "hg_sid"
	TokenCookie   = "hg_token"
	RefreshCookie = "hg_refresh"
)

var ErrNotFound = errors.New("session record not found")

// Source says where Read found the token.
type Source int

const (
	SourceNone Source = iota
	SourcePersistent
	SourceCookie
	SourceHeader
)

func (s Source) String() string {
	switch s {
	case SourcePersistent:
		return "persistent"
	case SourceCookie:
		return "cookie"
	case SourceHeader:
		return "header"
	default:
		return "none"
	}
}

// Record is the persistent copy of a session.
type Record struct {
	Tokens    auth.Tokens     `json:"tokens"`
	User      json.RawMessage `json:"user,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Persistent is a durable backing store for session records.
// Implementations must be safe for concurrent use.
type Persistent interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, id string, rec *Record, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Secure bool
	Domain string
	Path   string
	TTL    time.Duration
}

type Store struct {
	persistent Persistent
	opts       Options
	now        func() time.Time
}

// New returns a store. A nil Persistent gives a cookie/header-only store.
func New(p Persistent, opts Options) *Store {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	return &Store{persistent: p, opts: opts, now: time.Now}
}

// Read returns the first token found in priority order: persistent record,
// token cookie, Authorization header. A persistent backend failure falls
// through to the cookie; the error is reported only when nothing was found.
func (s *Store) Read(r *http.Request) (auth.Tokens, Source, error) {
	var backendErr error
	if s.persistent != nil {
		if id := cookieValue(r, SessionCookie); id != "" {
			rec, err := s.persistent.Get(r.Context(), id)
			switch {
			case err == nil && !rec.Tokens.Empty():
				return rec.Tokens, SourcePersistent, nil
			case err != nil && !errors.Is(err, ErrNotFound):
				backendErr = err
			}
		}
	}

	if tok := cookieValue(r, TokenCookie); tok != "" {
		return auth.Tokens{AccessToken: tok, RefreshToken: cookieValue(r, RefreshCookie)}, SourceCookie, nil
	}

	if tok, ok := auth.BearerToken(r); ok {
		return auth.Tokens{AccessToken: tok}, SourceHeader, nil
	}

	return auth.Tokens{}, SourceNone, backendErr
}

// ReadUser returns the serialized user held by the persistent record.
func (s *Store) ReadUser(r *http.Request) ([]byte, error) {
	if s.persistent == nil {
		return nil, ErrNotFound
	}
	id := cookieValue(r, SessionCookie)
	if id == "" {
		return nil, ErrNotFound
	}
	rec, err := s.persistent.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if len(rec.User) == 0 {
		return nil, ErrNotFound
	}
	return rec.User, nil
}

// Write stores tokens and the serialized user in the persistent record and
// mirrors the tokens into cookies. The session id the request carries is kept,
// so Write is only for sessions whose record was found under that id.
func (s *Store) Write(w http.ResponseWriter, r *http.Request, tokens auth.Tokens, user []byte) error {
	id := cookieValue(r, SessionCookie)
	if id == "" {
		id = uuid.NewString()
	}
	return s.write(w, r, id, tokens, user)
}

// Establish starts a new session: any record under the incoming session id is
// dropped and the tokens are stored under a freshly generated id. A session id
// supplied by the client is never adopted.
func (s *Store) Establish(w http.ResponseWriter, r *http.Request, tokens auth.Tokens, user []byte) error {
	if s.persistent != nil {
		if old := cookieValue(r, SessionCookie); old != "" {
			if err := s.persistent.Delete(r.Context(), old); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("drop previous session: %w", err)
			}
		}
	}
	return s.write(w, r, uuid.NewString(), tokens, user)
}

func (s *Store) write(w http.ResponseWriter, r *http.Request, id string, tokens auth.Tokens, user []byte) error {
	if s.persistent != nil {
		rec := &Record{Tokens: tokens, User: user, UpdatedAt: s.now().UTC()}
		if err := s.persistent.Put(r.Context(), id, rec, s.opts.TTL); err != nil {
			return err
		}
		s.setCookie(w, SessionCookie, id, s.opts.TTL)
	}
	s.setCookie(w, TokenCookie, tokens.AccessToken, s.opts.TTL)
	if tokens.RefreshToken != "" {
		s.setCookie(w, RefreshCookie, tokens.RefreshToken, s.opts.TTL)
	} else {
		// a refresh cookie left from an earlier session must not pair with these tokens
		s.setCookie(w, RefreshCookie, "", -1)
	}
	return nil
}

// Clear removes the persistent record and expires every cookie. Cookies are
// expired even when the persistent delete fails.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	var err error
	if s.persistent != nil {
		if id := cookieValue(r, SessionCookie); id != "" {
			if derr := s.persistent.Delete(r.Context(), id); derr != nil && !errors.Is(derr, ErrNotFound) {
				err = derr
			}
		}
	}
	for _, name := range []string{SessionCookie, TokenCookie, RefreshCookie} {
		s.setCookie(w, name, "", -1)
	}
	return err
}

func (s *Store) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
