package auth

import "errors"

var (
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	ErrForbidden        = errors.New("auth: admin role required")
)
