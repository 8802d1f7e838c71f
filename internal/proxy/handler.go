// Package proxy holds the pass-through API routes. Each route forwards one
// method to one backend path and relays the answer unchanged. There is no
// retry, no timeout beyond the client's own request context, and no cache.
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrorBody is the fixed answer when forwarding throws.
const ErrorBody = `{"message":"Internal server error"}`

// Recorder observes forwarded requests. metrics.Metrics implements it.
type Recorder interface {
	ObserveProxy(route, status string, d time.Duration)
}

type Route struct {
	Name        string
	Method      string
	BackendPath string
	// ForwardAuth copies the incoming Authorization header.
	ForwardAuth bool
}

// Routes is the proxy surface mounted under /api.
var Routes = []Route{
	{Name: "login", Method: http.MethodPost, BackendPath: "/auth/login"},
	{Name: "register", Method: http.MethodPost, BackendPath: "/auth/register"},
	{Name: "me", Method: http.MethodGet, BackendPath: "/auth/me", ForwardAuth: true},
	{Name: "logout", Method: http.MethodPost, BackendPath: "/auth/logout", ForwardAuth: true},
	{Name: "forgot-password", Method: http.MethodPost, BackendPath: "/auth/forgot-password"},
	{Name: "reset-password", Method: http.MethodPost, BackendPath: "/auth/reset-password"},
}

type Handler struct {
	Route    Route
	BaseURL  string
	Client   *http.Client
	Logger   *slog.Logger
	Recorder Recorder
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != h.Route.Method {
		w.Header().Set("Allow", h.Route.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	status, body, err := h.forward(r)
	if err != nil {
		h.Logger.Error("proxy forward failed", "route", h.Route.Name, "err", err)
		h.observe("error", start)
		writeJSON(w, http.StatusInternalServerError, []byte(ErrorBody))
		return
	}
	h.observe(strconv.Itoa(status), start)
	writeJSON(w, status, body)
}

func (h *Handler) forward(r *http.Request) (int, []byte, error) {
	var body io.Reader
	if h.Route.Method != http.MethodGet && h.Route.Method != http.MethodHead {
		in, err := io.ReadAll(r.Body)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(in)
	}

	req, err := http.NewRequestWithContext(r.Context(), h.Route.Method, h.BaseURL+h.Route.BackendPath, body)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", "application/json")
	if h.Route.ForwardAuth {
		if v := r.Header.Get("Authorization"); v != "" {
			req.Header.Set("Authorization", v)
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	if !json.Valid(out) {
		return 0, nil, errMalformed{status: resp.StatusCode}
	}
	return resp.StatusCode, out, nil
}

func (h *Handler) observe(status string, start time.Time) {
	if h.Recorder != nil {
		h.Recorder.ObserveProxy(h.Route.Name, status, time.Since(start))
	}
}

type errMalformed struct {
	status int
}

func (e errMalformed) Error() string {
	return "backend answered " + strconv.Itoa(e.status) + " with a body that is not JSON"
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
