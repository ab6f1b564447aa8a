package apiclient

import "net/url"

// Prefix is the versioned base path of the backend REST API.
const Prefix = "/api/v1"

const (
	PathLogin           = Prefix + "/auth/login"
	PathRegister        = Prefix + "/auth/register"
	PathLogout          = Prefix + "/auth/logout"
	PathMe              = Prefix + "/auth/me"
	PathRules           = Prefix + "/rules"
	PathPermissionUsers = Prefix + "/permissions/users"
	PathRoles           = Prefix + "/roles"
	PathBranding        = Prefix + "/branding"

	// PathHealth is served at the backend root, outside the versioned prefix.
	PathHealth = "/health"
)

func RulePath(id string) string {
	return PathRules + "/" + url.PathEscape(id)
}

func UserActivePath(userID string) string {
	return PathPermissionUsers + "/" + url.PathEscape(userID) + "/active"
}

func UserRolesPath(userID string) string {
	return PathPermissionUsers + "/" + url.PathEscape(userID) + "/roles"
}

func UserRolePath(userID, roleID string) string {
	return UserRolesPath(userID) + "/" + url.PathEscape(roleID)
}
