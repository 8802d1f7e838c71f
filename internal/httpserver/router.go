package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"hotelgate/internal/metrics"
	"hotelgate/internal/proxy"
	"hotelgate/internal/session"
)

type RouterDeps struct {
	Logger      *slog.Logger
	Sessions    *session.Manager
	Areas       []Area
	BackendURL  string
	ProxyClient *http.Client
	Metrics     *metrics.Metrics
	UIOrigin    *url.URL
	CORSOrigins []string
	Version     string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(recoveryMiddleware(d.Logger))
	r.Use(corsMiddleware(d.CORSOrigins))
	r.Use(bodySizeLimitMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": d.Version})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Pass-through API routes.
	r.Route("/api/auth", func(r chi.Router) {
		for _, rt := range proxy.Routes {
			h := &proxy.Handler{
				Route:   rt,
				BaseURL: d.BackendURL,
				Client:  d.ProxyClient,
				Logger:  d.Logger,
			}
			if d.Metrics != nil {
				h.Recorder = d.Metrics
			}
			r.Method(rt.Method, "/"+rt.Name, h)
		}
	})

	// Session context.
	sh := &sessionHandlers{manager: d.Sessions, logger: d.Logger}
	r.Route("/session", func(r chi.Router) {
		r.Get("/", sh.state)
		r.Post("/login", sh.login)
		r.Post("/register", sh.register)
		r.Post("/logout", sh.logout)
		r.Post("/forgot-password", sh.forgotPassword)
		r.Post("/reset-password", sh.resetPassword)
		r.Post("/change-password", sh.changePassword)
	})

	// Protected areas.
	for _, a := range d.Areas {
		content := contentHandler(d.UIOrigin, a.Gate.Area)
		guarded := r.With(a.Gate.Middleware)
		guarded.Handle(a.Prefix, content)
		guarded.Handle(a.Prefix+"/*", content)
	}

	return r
}
