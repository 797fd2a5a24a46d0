// Package httpx keeps the router implementation out of the bridge wiring.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router is what the bridge mounts onto.
type Router interface {
	Use(mw ...func(http.Handler) http.Handler)
	// HandleAll sends every request to h, whatever its method or path.
	HandleAll(h http.Handler)
	Get(path string, h http.Handler)
	Mux() http.Handler
}

type chiRouter struct{ mux *chi.Mux }

func NewChi() Router { return &chiRouter{mux: chi.NewRouter()} }

func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.mux.Use(mw...) }
func (c *chiRouter) Get(path string, h http.Handler)           { c.mux.Method(http.MethodGet, path, h) }
func (c *chiRouter) Mux() http.Handler                         { return c.mux }

// HandleAll also takes over chi's 404 and 405 handlers: chi only knows the
// standard methods and would otherwise answer PROPFIND and friends itself.
func (c *chiRouter) HandleAll(h http.Handler) {
	c.mux.Handle("/*", h)
	c.mux.NotFound(h.ServeHTTP)
	c.mux.MethodNotAllowed(h.ServeHTTP)
}
