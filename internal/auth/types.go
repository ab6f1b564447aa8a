package auth

import "time"

// AuthType says how a user signs in.
type AuthType string

const (
	AuthLocal AuthType = "local"
	AuthSSO   AuthType = "sso"
)

// User is the signed-in identity as returned by GET /auth/me and the
// permissions user listing.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	AuthType    AuthType   `json:"auth_type,omitempty"`
	PictureURL  string     `json:"picture_url,omitempty"`
	Roles       []Role     `json:"roles,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at,omitzero"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Role groups backend permissions. Only the name matters client-side.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoleAdmin is the only role name the console treats specially.
const RoleAdmin = "admin"

// HasRole reports whether u holds a role named exactly name.
func HasRole(u *User, name string) bool {
	if u == nil || name == "" {
		return false
	}
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// IsAdmin is the single admin capability check used by every screen.
// Matching is case-sensitive: "Admin" is not an administrator.
func IsAdmin(u *User) bool {
	return HasRole(u, RoleAdmin)
}
