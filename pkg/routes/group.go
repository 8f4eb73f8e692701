package routes

import "net/http"

// Group collects the routes of one resource under a shared prefix.
// Children inherit the parent prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
// ServeMux panics on conflicting patterns, so overlapping groups fail at startup.
func Register(mux *http.ServeMux, groups ...Group) {
	walk(groups, func(pattern string, r Route) {
		mux.HandleFunc(pattern, r.Handler)
	})
}

// Patterns lists the full "METHOD /path" pattern of every route in groups.
func Patterns(groups ...Group) []string {
	var out []string
	walk(groups, func(pattern string, _ Route) {
		out = append(out, pattern)
	})
	return out
}

func walk(groups []Group, fn func(pattern string, r Route)) {
	for _, g := range groups {
		walkGroup("", g, fn)
	}
}

func walkGroup(parent string, g Group, fn func(pattern string, r Route)) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		fn(r.under(prefix), r)
	}
	for _, child := range g.Children {
		walkGroup(prefix, child, fn)
	}
}
