package gate

import "hotelgate/internal/auth"

// Predicate decides whether a verified user may enter an area.
type Predicate func(u *auth.User) bool

// RequireAuthenticated admits any verified user.
func RequireAuthenticated() Predicate {
	return func(u *auth.User) bool { return u != nil }
}

// RequireAnyPermission admits the super-admin role unconditionally, and
// anyone else holding at least one of keys through their role or a custom
// grant.
func RequireAnyPermission(superAdminRole string, keys ...auth.Permission) Predicate {
	want := append([]auth.Permission(nil), keys...)
	return func(u *auth.User) bool {
		if u == nil {
			return false
		}
		if u.IsSuperAdmin(superAdminRole) {
			return true
		}
		return u.HasAnyPermission(want...)
	}
}
