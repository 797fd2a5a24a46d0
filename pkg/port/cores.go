package port

import (
	"sync"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
)

// Emit publishes a response from a core. Safe to call from any goroutine and
// at any later time.
type Emit func(message.Response)

// Core is an application core run behind a Local port.
type Core interface {
	Handle(req message.Request, emit Emit)
}

type CoreFunc func(req message.Request, emit Emit)

func (f CoreFunc) Handle(req message.Request, emit Emit) { f(req, emit) }

var (
	coresMu sync.RWMutex
	cores   = map[string]Core{}
)

// RegisterCore makes a core available under a name referenced by
// transport.local.core in the config.
func RegisterCore(name string, c Core) {
	coresMu.Lock()
	cores[name] = c
	coresMu.Unlock()
}

// LookupCore retrieves a registered core by name.
func LookupCore(name string) (Core, bool) {
	coresMu.RLock()
	defer coresMu.RUnlock()
	c, ok := cores[name]
	return c, ok
}

func init() {
	RegisterCore("echo", CoreFunc(echo))
}

// echo answers 200 with the request body, or "METHOD path" when there is none.
func echo(req message.Request, emit Emit) {
	body := req.Body
	if body == "" {
		body = req.Method + " " + req.Path
	}
	var hdrs map[string]string
	if ct := req.Headers["Content-Type"]; ct != "" {
		hdrs = map[string]string{"Content-Type": ct}
	}
	emit(message.Response{ID: req.ID, Status: 200, Body: body, Headers: hdrs})
}
