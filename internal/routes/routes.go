// Package routes decides whether a navigation may proceed given the current
// session.
package routes

import (
	"context"
	"strings"
)

const (
	PathLogin = "/login"
	PathHome  = "/"
)

type Route struct {
	Name          string
	Path          string
	Public        bool
	RequiresAdmin bool
}

// Table lists the console screens.
var Table = []Route{
	{Name: "login", Path: PathLogin, Public: true},
	{Name: "register", Path: "/register", Public: true},
	{Name: "health", Path: "/health", Public: true},
	{Name: "home", Path: PathHome},
	{Name: "dashboard", Path: "/dashboard"},
	{Name: "rules", Path: "/rules"},
	{Name: "synthetic-test", Path: "/synthetic-test"},
	{Name: "permissions", Path: "/permissions", RequiresAdmin: true},
	{Name: "branding", Path: "/branding", RequiresAdmin: true},
}

// Session is what the guard needs from session.Session.
type Session interface {
	Wait(ctx context.Context) error
	Authenticated() bool
	IsAdmin() bool
}

type Decision struct {
	Allow    bool
	Redirect string
	Route    Route
}

type Guard struct {
	session Session
	byPath  map[string]Route
}

func NewGuard(s Session, table []Route) *Guard {
	g := &Guard{session: s, byPath: make(map[string]Route, len(table))}
	for _, r := range table {
		g.byPath[r.Path] = r
	}
	return g
}

// Lookup finds the route for path. Unknown paths come back non-public.
func (g *Guard) Lookup(path string) (Route, bool) {
	path = normalize(path)
	r, ok := g.byPath[path]
	if !ok {
		return Route{Path: path}, false
	}
	return r, true
}

// Resolve waits for the session to settle, then applies, in order: anonymous
// users may only see public routes; signed-in users skip the login page;
// admin-only routes send everyone else home.
func (g *Guard) Resolve(ctx context.Context, path string) (Decision, error) {
	if err := g.session.Wait(ctx); err != nil {
		return Decision{}, err
	}
	route, _ := g.Lookup(path)
	authed := g.session.Authenticated()

	switch {
	case !authed && !route.Public:
		return Decision{Redirect: PathLogin, Route: route}, nil
	case authed && route.Path == PathLogin:
		return Decision{Redirect: PathHome, Route: route}, nil
	case route.RequiresAdmin && !g.session.IsAdmin():
		return Decision{Redirect: PathHome, Route: route}, nil
	}
	return Decision{Allow: true, Route: route}, nil
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return PathHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = PathHome
		}
	}
	return path
}
