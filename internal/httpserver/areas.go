package httpserver

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"hotelgate/internal/auth"
	"hotelgate/internal/config"
	"hotelgate/internal/gate"
)

// Area pairs a path prefix with the gate that guards it.
type Area struct {
	Prefix string
	Gate   *gate.Gate
}

// BuildAreas turns area configuration into gates. Areas listing permissions
// get the any-permission predicate with the super-admin bypass; the rest
// admit any verified user.
func BuildAreas(areas []config.AreaConfig, superAdminRole string, authn gate.Authenticator, rec gate.Recorder, logger *slog.Logger) []Area {
	out := make([]Area, 0, len(areas))
	for _, a := range areas {
		opts := []gate.Option{gate.WithLogger(logger)}
		if rec != nil {
			opts = append(opts, gate.WithRecorder(rec))
		}
		if len(a.Permissions) > 0 {
			opts = append(opts,
				gate.WithPredicate(gate.RequireAnyPermission(superAdminRole, auth.Permissions(a.Permissions...)...)),
				gate.WithDeniedPath(a.DeniedPath),
			)
		}
		out = append(out, Area{
			Prefix: strings.TrimRight(a.Prefix, "/"),
			Gate:   gate.New(a.Name, a.LoginPath, authn, opts...),
		})
	}
	return out
}

// contentHandler serves an admitted request. With a UI origin the request is
// reverse-proxied there carrying the verified identity; otherwise a small
// JSON descriptor of the page and user is returned.
func contentHandler(uiOrigin *url.URL, area string) http.Handler {
	if uiOrigin == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := auth.UserFromContext(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{
				"area": area,
				"path": r.URL.Path,
				"user": user,
			})
		})
	}

	rp := httputil.NewSingleHostReverseProxy(uiOrigin)
	director := rp.Director
	rp.Director = func(r *http.Request) {
		director(r)
		r.Header.Del("X-Hotelgate-User")
		r.Header.Del("X-Hotelgate-Role")
		r.Header.Del("X-Hotelgate-Permissions")
		if user, ok := auth.UserFromContext(r.Context()); ok {
			r.Header.Set("X-Hotelgate-User", user.ID)
			r.Header.Set("X-Hotelgate-Role", user.Role.Name)
			r.Header.Set("X-Hotelgate-Permissions", joinPermissions(user.EffectivePermissions()))
		}
		r.Header.Set("X-Hotelgate-Area", area)
	}
	return rp
}

func joinPermissions(perms []auth.Permission) string {
	keys := make([]string, len(perms))
	for i, p := range perms {
		keys[i] = string(p)
	}
	return strings.Join(keys, ",")
}
