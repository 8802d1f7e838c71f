package auth

// Permission is a capability key compared by exact match.
type Permission string

// DefaultSuperAdminRole is the role name that bypasses every permission check
// unless configuration names a different one.
const DefaultSuperAdminRole = "super_admin"

type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// User is the record returned by the backend on login, registration and
// verification. It is replaced wholesale on every verification.
type User struct {
	ID                string       `json:"id"`
	Name              string       `json:"name,omitempty"`
	Email             string       `json:"email,omitempty"`
	HotelID           string       `json:"hotelId,omitempty"`
	Role              Role         `json:"role"`
	CustomPermissions []Permission `json:"customPermissions,omitempty"`
}

// Tokens is what the token store persists for a session.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (t Tokens) Empty() bool {
	return t.AccessToken == ""
}
