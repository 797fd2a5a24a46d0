package port

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
)

// Local is an in-process queue pair. The core runs on a single goroutine and
// sees requests one at a time; whatever it emits, now or later, is delivered to
// the handler from a second goroutine in emission order.
type Local struct {
	core      Core
	requests  chan message.Request
	responses chan message.Response

	mu      sync.RWMutex
	handler Handler

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewLocal(core Core, buffer int) *Local {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Local{
		core:      core,
		requests:  make(chan message.Request, buffer),
		responses: make(chan message.Response, buffer),
		stop:      make(chan struct{}),
	}
}

func (l *Local) OnMessage(h Handler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

func (l *Local) Start(context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("port(local): already started")
	}
	l.wg.Add(2)
	go l.runCore()
	go l.dispatch()
	return nil
}

func (l *Local) Send(ctx context.Context, req message.Request) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}
	select {
	case l.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrStopped
	}
}

// Stop ends both loops. Queued requests are discarded.
func (l *Local) Stop() error {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
	return nil
}

func (l *Local) runCore() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case req := <-l.requests:
			l.core.Handle(req, l.emit)
		}
	}
}

func (l *Local) emit(resp message.Response) {
	select {
	case l.responses <- resp:
	case <-l.stop:
	}
}

func (l *Local) dispatch() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case resp := <-l.responses:
			l.mu.RLock()
			h := l.handler
			l.mu.RUnlock()
			if h != nil {
				h(resp)
			}
		}
	}
}
