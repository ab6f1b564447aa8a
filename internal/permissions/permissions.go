// Package permissions backs the admin-only user and role management screen.
package permissions

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/auth"
)

type Service struct {
	api apiclient.Requester
}

func NewService(api apiclient.Requester) *Service {
	return &Service{api: api}
}

func (s *Service) ListUsers(ctx context.Context) ([]auth.User, error) {
	var out struct {
		Users []auth.User `json:"users"`
	}
	if _, err := s.api.Get(ctx, apiclient.PathPermissionUsers, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]auth.Role, error) {
	var out struct {
		Roles []auth.Role `json:"roles"`
	}
	if _, err := s.api.Get(ctx, apiclient.PathRoles, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (s *Service) SetActive(ctx context.Context, userID string, active bool) error {
	if userID == "" {
		return apiclient.Validation("User ID is required")
	}
	_, err := s.api.Put(ctx, apiclient.UserActivePath(userID), map[string]bool{"active": active}, nil)
	return err
}

func (s *Service) AssignRole(ctx context.Context, userID, roleID string) error {
	if userID == "" || roleID == "" {
		return apiclient.Validation("User and role are required")
	}
	_, err := s.api.Post(ctx, apiclient.UserRolesPath(userID), map[string]string{"role_id": roleID}, nil)
	return err
}

func (s *Service) RevokeRole(ctx context.Context, userID, roleID string) error {
	if userID == "" || roleID == "" {
		return apiclient.Validation("User and role are required")
	}
	_, err := s.api.Delete(ctx, apiclient.UserRolePath(userID, roleID), nil)
	return err
}

// Session is what the screen needs from session.Session.
type Session interface {
	IsAdmin() bool
	User() *auth.User
	Refresh(ctx context.Context) error
}

// Screen holds the loaded users and roles. Every operation refuses to run
// for a non-admin session.
type Screen struct {
	svc     *Service
	session Session

	mu      sync.RWMutex
	users   []auth.User
	roles   []auth.Role
	loading bool
	err     string
}

func NewScreen(svc *Service, s Session) *Screen {
	return &Screen{svc: svc, session: s}
}

// Load fetches users and roles concurrently.
func (s *Screen) Load(ctx context.Context) error {
	if !s.session.IsAdmin() {
		return auth.ErrForbidden
	}
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	var (
		users []auth.User
		roles []auth.Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.svc.ListUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.svc.ListRoles(gctx)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
		return err
	}
	s.users = users
	s.roles = roles
	return nil
}

// ToggleActive flips the user's active flag.
func (s *Screen) ToggleActive(ctx context.Context, u auth.User) error {
	return s.mutate(ctx, u.ID, func() error {
		return s.svc.SetActive(ctx, u.ID, !u.Active)
	})
}

func (s *Screen) Assign(ctx context.Context, userID, roleID string) error {
	return s.mutate(ctx, userID, func() error {
		return s.svc.AssignRole(ctx, userID, roleID)
	})
}

func (s *Screen) Revoke(ctx context.Context, userID, roleID string) error {
	return s.mutate(ctx, userID, func() error {
		return s.svc.RevokeRole(ctx, userID, roleID)
	})
}

// mutate runs fn, reloads the lists and, when the signed-in user was the
// target, refreshes the session so role changes take effect at once.
func (s *Screen) mutate(ctx context.Context, userID string, fn func() error) error {
	if !s.session.IsAdmin() {
		return auth.ErrForbidden
	}
	if err := fn(); err != nil {
		s.mu.Lock()
		s.err = err.Error()
		s.mu.Unlock()
		return err
	}
	if me := s.session.User(); me != nil && me.ID == userID {
		if err := s.session.Refresh(ctx); err != nil {
			return err
		}
		if !s.session.IsAdmin() {
			return nil
		}
	}
	return s.Load(ctx)
}

func (s *Screen) Users() []auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auth.User(nil), s.users...)
}

func (s *Screen) Roles() []auth.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auth.Role(nil), s.roles...)
}

// User finds a loaded user by id.
func (s *Screen) User(id string) (auth.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return auth.User{}, false
}

// AvailableRoles lists the loaded roles u does not hold yet.
func (s *Screen) AvailableRoles(u auth.User) []auth.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := make(map[string]struct{}, len(u.Roles))
	for _, r := range u.Roles {
		held[r.ID] = struct{}{}
	}
	var out []auth.Role
	for _, r := range s.roles {
		if _, ok := held[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Screen) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Screen) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
