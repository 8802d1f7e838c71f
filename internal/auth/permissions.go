package auth

// EffectivePermissions returns the role permissions followed by any custom
// permissions not already granted by the role.
func (u *User) EffectivePermissions() []Permission {
	if u == nil {
		return nil
	}
	seen := make(map[Permission]struct{}, len(u.Role.Permissions)+len(u.CustomPermissions))
	out := make([]Permission, 0, len(u.Role.Permissions)+len(u.CustomPermissions))
	for _, set := range [][]Permission{u.Role.Permissions, u.CustomPermissions} {
		for _, p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// IsSuperAdmin reports whether the user's role is the distinguished role.
func (u *User) IsSuperAdmin(superAdminRole string) bool {
	if u == nil {
		return false
	}
	if superAdminRole == "" {
		superAdminRole = DefaultSuperAdminRole
	}
	return u.Role.Name == superAdminRole
}

func (u *User) HasPermission(p Permission) bool {
	if u == nil {
		return false
	}
	for _, set := range [][]Permission{u.Role.Permissions, u.CustomPermissions} {
		for _, have := range set {
			if have == p {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of want is held through the
// role or a custom grant. An empty want list never matches.
func (u *User) HasAnyPermission(want ...Permission) bool {
	for _, p := range want {
		if u.HasPermission(p) {
			return true
		}
	}
	return false
}

func Permissions(keys ...string) []Permission {
	out := make([]Permission, len(keys))
	for i, k := range keys {
		out[i] = Permission(k)
	}
	return out
}
