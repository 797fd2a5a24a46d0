// Package port is the message channel between the bridge and the application
// core. Requests go out through Send, responses come back through the handler
// registered with OnMessage. Nothing else crosses the boundary.
package port

import (
	"context"
	"errors"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
)

var ErrStopped = errors.New("port: stopped")

// Handler receives one Response per message the core emits, in emission order.
type Handler func(message.Response)

// Port is implemented by every transport to the core.
//
// Send hands the request to the transport and returns. It does not wait for a
// response; the returned error only describes a failure to hand off.
type Port interface {
	Send(ctx context.Context, req message.Request) error
	OnMessage(h Handler)
	Start(ctx context.Context) error
	Stop() error
}
