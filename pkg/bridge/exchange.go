package bridge

import (
	"sync"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
)

const (
	outcomeCompleted  = "completed"
	outcomeTimeout    = "timeout"
	outcomeClientGone = "client_gone"
	outcomeDrained    = "drained"
	outcomeSendFailed = "send_failed"
)

type result struct {
	resp    message.Response
	outcome string
}

// exchange is the completion handle for one in-flight request. Whoever
// finishes it first decides the response; the handler goroutine that owns the
// ResponseWriter picks it up from done.
type exchange struct {
	once  sync.Once
	done  chan result
	start time.Time
}

func newExchange() *exchange {
	return &exchange{done: make(chan result, 1), start: time.Now()}
}

func (e *exchange) Complete(resp message.Response) bool {
	return e.finish(resp, outcomeCompleted)
}

func (e *exchange) finish(resp message.Response, outcome string) bool {
	won := false
	e.once.Do(func() {
		won = true
		e.done <- result{resp: resp, outcome: outcome}
	})
	return won
}
