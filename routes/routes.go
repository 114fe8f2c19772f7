package routes

import (
	"context"
	"strings"
)

// Route describes a view and the roles allowed to open it. An empty RequiredRoles means any
// authenticated user.
type Route struct {
	Path          string
	Title         string
	RequiredRoles []string
}

// Protected reports whether the route sits behind the guard.
func (r Route) Protected() bool {
	return r.RequiredRoles != nil
}

// Table is the static routing configuration: public views are never guarded.
type Table struct {
	Public    []Route
	Protected []Route
}

// DefaultTable mirrors the front end's route configuration.
func DefaultTable() Table {
	return Table{
		Public: []Route{
			{Path: "/login", Title: "Login"},
			{Path: "/signup", Title: "Sign up"},
		},
		Protected: []Route{
			{Path: "/dashboard", Title: "Dashboard", RequiredRoles: []string{}},
			{Path: "/workspaces", Title: "Workspaces", RequiredRoles: []string{}},
			{Path: "/admin", Title: "Administration", RequiredRoles: []string{"admin"}},
		},
	}
}

// Lookup finds the route for path. protected is false for public routes.
func (t Table) Lookup(path string) (route Route, protected bool, ok bool) {
	path = normalise(path)
	for _, r := range t.Protected {
		if normalise(r.Path) == path {
			return r, true, true
		}
	}
	for _, r := range t.Public {
		if normalise(r.Path) == path {
			return r, false, true
		}
	}
	return Route{}, false, false
}

func normalise(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Navigator moves the client to another view.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	f(ctx, path)
}
