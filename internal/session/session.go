// Package session tracks who is signed in to the console.
//
// A Session starts Uninitialized, moves to Loading while the profile is
// fetched, and always settles in Authenticated or Anonymous. Screens and the
// route guard read it; only Init, SetToken, Login, Register, Logout and
// Refresh change it.
package session

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/auth"
	"algoshield.org/console/internal/obs"
	"algoshield.org/console/internal/storage"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

const minPasswordLength = 6

type Session struct {
	api    apiclient.Requester
	tokens *storage.TokenStore
	now    func() time.Time

	mu       sync.Mutex
	state    State
	user     *auth.User
	gen      uint64
	changed  chan struct{}
	disposed bool
}

func New(api apiclient.Requester, tokens *storage.TokenStore) *Session {
	return &Session{
		api:     api,
		tokens:  tokens,
		now:     time.Now,
		changed: make(chan struct{}),
	}
}

type authResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Init bootstraps from the persisted token. It always leaves the session
// out of the loading states. A failed profile fetch clears the token unless
// ctx ended first.
func (s *Session) Init(ctx context.Context) error {
	return s.loadUser(ctx)
}

// Refresh re-fetches the profile, e.g. after the user's roles changed.
func (s *Session) Refresh(ctx context.Context) error {
	return s.loadUser(ctx)
}

// SetToken persists token and loads the profile it belongs to.
func (s *Session) SetToken(ctx context.Context, token string) error {
	if s.isDisposed() {
		return nil
	}
	if err := s.tokens.SetToken(ctx, token); err != nil {
		return err
	}
	return s.loadUser(ctx)
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apiclient.Validation("Email and password are required")
	}
	var resp authResponse
	if _, err := s.api.Post(ctx, apiclient.PathLogin, map[string]string{
		"email":    email,
		"password": password,
	}, &resp); err != nil {
		return err
	}
	return s.acceptAuth(ctx, resp)
}

func (s *Session) Register(ctx context.Context, email, password, name string) error {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return apiclient.Validation("Name, email and password are required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apiclient.Validation("Password must be at least 6 characters")
	}
	var resp authResponse
	if _, err := s.api.Post(ctx, apiclient.PathRegister, map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, &resp); err != nil {
		return err
	}
	return s.acceptAuth(ctx, resp)
}

func (s *Session) acceptAuth(ctx context.Context, resp authResponse) error {
	if resp.Token == "" {
		return &apiclient.Error{Kind: apiclient.KindUnexpectedFormat, Message: "Authentication response did not include a token"}
	}
	return s.SetToken(ctx, resp.Token)
}

// Logout tells the backend best-effort, then always forgets the user and
// the persisted token, even on a disposed session.
func (s *Session) Logout(ctx context.Context) error {
	if _, err := s.api.Post(ctx, apiclient.PathLogout, nil, nil); err != nil {
		obs.Warn("logout request failed", map[string]any{"error": err.Error()})
	}
	s.mu.Lock()
	s.gen++
	s.user = nil
	s.setStateLocked(Anonymous)
	s.mu.Unlock()
	return s.tokens.ClearToken(ctx)
}

func (s *Session) loadUser(ctx context.Context) error {
	if s.isDisposed() {
		return nil
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.settle(0, nil, false)
		return err
	}
	if token == "" {
		s.settle(0, nil, false)
		return nil
	}
	if auth.TokenExpired(token, s.now()) {
		s.settle(0, nil, false)
		return s.tokens.ClearToken(ctx)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.setStateLocked(Loading)
	s.mu.Unlock()

	var u auth.User
	if _, err := s.api.Get(ctx, apiclient.PathMe, &u); err != nil {
		// The caller gave up (Ctrl-C, request deadline): the backend never
		// judged the token, so it stays for the next attempt.
		if s.settle(gen, nil, true) && ctx.Err() == nil {
			if cerr := s.tokens.ClearToken(ctx); cerr != nil {
				obs.Warn("clear rejected token", map[string]any{"error": cerr.Error()})
			}
		}
		return err
	}
	s.settle(gen, &u, true)
	return nil
}

// settle commits the outcome of a profile fetch. When checkGen is set and a
// newer fetch has started since, the outcome is dropped and false returned.
func (s *Session) settle(gen uint64, u *auth.User, checkGen bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checkGen && gen != s.gen {
		return false
	}
	if !checkGen {
		s.gen++
	}
	s.user = u
	if u != nil {
		s.setStateLocked(Authenticated)
	} else {
		s.setStateLocked(Anonymous)
	}
	return true
}

func (s *Session) setStateLocked(st State) {
	if s.disposed {
		return
	}
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	cp.Roles = append([]auth.Role(nil), s.user.Roles...)
	return &cp
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading is true until the first bootstrap settles and during every
// profile fetch.
func (s *Session) Loading() bool {
	st := s.State()
	return st == Uninitialized || st == Loading
}

func (s *Session) Authenticated() bool {
	return s.State() == Authenticated
}

func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return auth.IsAdmin(s.user)
}

// Context attaches the current user, if any, to ctx.
func (s *Session) Context(ctx context.Context) context.Context {
	return auth.ContextWithUser(ctx, s.User())
}

// Wait blocks until the session is not loading, ctx ends or the session
// is disposed.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.disposed || (s.state != Uninitialized && s.state != Loading) {
			s.mu.Unlock()
			return nil
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Dispose releases waiters. Later mutations are no-ops.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	close(s.changed)
}
