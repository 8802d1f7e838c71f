// Package gate guards protected areas. One Gate type is instantiated per
// area with its own predicate and redirect targets.
//
// Evaluation is strictly ordered: token presence, then remote verification,
// then the predicate. A failure at any step is terminal for the request.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"hotelgate/internal/auth"
)

type State int

const (
	Checking State = iota
	Authorized
	Redirecting
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Authorized:
		return "authorized"
	case Redirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Reason labels why a decision was reached.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonNoCredential Reason = "no_credential"
	ReasonVerification Reason = "verification_failed"
	ReasonForbidden    Reason = "forbidden"
	ReasonAbandoned    Reason = "abandoned"
)

type Decision struct {
	State    State
	Reason   Reason
	Redirect string
	User     *auth.User
	Err      error
}

// Authenticator is the part of the session manager the gate needs.
type Authenticator interface {
	HasCredential(r *http.Request) bool
	CheckAuth(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.User, error)
}

// Recorder observes decisions. metrics.Metrics implements it.
type Recorder interface {
	ObserveGateDecision(area, state, reason string)
}

type Gate struct {
	Area       string
	LoginPath  string
	DeniedPath string
	Allow      Predicate

	authn    Authenticator
	logger   *slog.Logger
	recorder Recorder
}

type Option func(*Gate)

func WithPredicate(p Predicate) Option {
	return func(g *Gate) { g.Allow = p }
}

func WithDeniedPath(path string) Option {
	return func(g *Gate) { g.DeniedPath = path }
}

func WithRecorder(rec Recorder) Option {
	return func(g *Gate) { g.recorder = rec }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New builds a gate for area that sends unauthenticated requests to
// loginPath. Without WithPredicate any verified user is admitted.
func New(area, loginPath string, authn Authenticator, opts ...Option) *Gate {
	g := &Gate{
		Area:      area,
		LoginPath: loginPath,
		Allow:     RequireAuthenticated(),
		authn:     authn,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.DeniedPath == "" {
		g.DeniedPath = g.LoginPath
	}
	return g
}

// Evaluate runs the gate once. It may write cookies to w (clearing a
// rejected session) but never writes a status or body.
func (g *Gate) Evaluate(w http.ResponseWriter, r *http.Request) Decision {
	d := g.evaluate(w, r)
	if g.recorder != nil {
		g.recorder.ObserveGateDecision(g.Area, d.State.String(), string(d.Reason))
	}
	return d
}

func (g *Gate) evaluate(w http.ResponseWriter, r *http.Request) Decision {
	if !g.authn.HasCredential(r) {
		return g.redirect(g.LoginPath, ReasonNoCredential, auth.ErrNoCredential)
	}

	ctx := r.Context()
	user, err := g.authn.CheckAuth(ctx, w, r)
	if ctx.Err() != nil {
		return Decision{State: Checking, Reason: ReasonAbandoned, Err: ctx.Err()}
	}
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return g.redirect(g.LoginPath, ReasonNoCredential, err)
		}
		return g.redirect(g.LoginPath, ReasonVerification, err)
	}

	if g.Allow != nil && !g.Allow(user) {
		d := g.redirect(g.DeniedPath, ReasonForbidden, auth.ErrForbidden)
		d.User = user
		return d
	}
	return Decision{State: Authorized, Reason: ReasonOK, User: user}
}

func (g *Gate) redirect(to string, reason Reason, err error) Decision {
	return Decision{State: Redirecting, Reason: reason, Redirect: to, Err: err}
}

// Middleware admits authorized requests with the user in the request
// context and answers everything else with a 302 redirect. When the client
// has gone away before verification finished, nothing is written.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Evaluate(w, r)
		switch d.State {
		case Authorized:
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), d.User)))
		case Redirecting:
			g.logger.Debug("gate redirect",
				"area", g.Area,
				"path", r.URL.Path,
				"reason", string(d.Reason),
				"to", d.Redirect,
			)
			http.Redirect(w, r, d.Redirect, http.StatusFound)
		default:
			g.logger.Debug("gate evaluation abandoned", "area", g.Area, "path", r.URL.Path)
		}
	})
}
