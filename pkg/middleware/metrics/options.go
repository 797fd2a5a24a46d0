package metrics

import (
	"net/http"
	"strings"
)

type options struct {
	skip map[string]bool
}

type Option func(*options)

// SkipPaths excludes exact request paths from the HTTP collectors.
func SkipPaths(paths ...string) Option {
	return func(o *options) {
		for _, p := range paths {
			if p = strings.TrimSpace(p); p != "" {
				o.skip[p] = true
			}
		}
	}
}

// firstSegment keeps only "/users" of "/users/42/edit". Every path reaches the
// bridge, so the raw path would be an unbounded label.
func firstSegment(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return "/" + p
}
