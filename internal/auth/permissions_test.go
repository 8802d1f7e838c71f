package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePermissions(t *testing.T) {
	u := &User{
		Role:              Role{Name: "manager", Permissions: Permissions("booking.read", "user.read")},
		CustomPermissions: Permissions("user.read", "user.update"),
	}
	assert.Equal(t, Permissions("booking.read", "user.read", "user.update"), u.EffectivePermissions())

	var nilUser *User
	assert.Nil(t, nilUser.EffectivePermissions())
}

func TestHasAnyPermission(t *testing.T) {
	u := &User{Role: Role{Name: "desk"}, CustomPermissions: Permissions("user.update")}

	assert.True(t, u.HasAnyPermission("role.delete", "user.update"))
	assert.False(t, u.HasAnyPermission("role.delete"))
	assert.False(t, u.HasAnyPermission())

	var nilUser *User
	assert.False(t, nilUser.HasAnyPermission("user.update"))
}

func TestIsSuperAdmin(t *testing.T) {
	u := &User{Role: Role{Name: "super_admin"}}
	assert.True(t, u.IsSuperAdmin(""))
	assert.True(t, u.IsSuperAdmin("super_admin"))
	assert.False(t, u.IsSuperAdmin("root"))

	owner := &User{Role: Role{Name: "owner"}}
	assert.True(t, owner.IsSuperAdmin("owner"))
	assert.False(t, owner.IsSuperAdmin(""))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(r)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserFromContext(WithUser(context.Background(), nil))
	assert.False(t, ok)

	u := &User{ID: "u1"}
	got, ok := UserFromContext(WithUser(context.Background(), u))
	assert.True(t, ok)
	assert.Same(t, u, got)
}
