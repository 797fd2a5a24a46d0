// Package bridge turns HTTP exchanges into core messages and back.
//
// ServeHTTP is the inbound side: it reads the body, registers a completion
// handle under a fresh correlation id and sends a message.Request through the
// port. Deliver is the outbound side: it resolves the id carried by a
// message.Response and completes the matching handle. The pending registry is
// the only state the two sides share.
package bridge

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-bridge/pkg/pending"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Bridge struct {
	pending *pending.Registry
	port    port.Port
	ids     IDGenerator
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Bridge)

// WithTimeout bounds how long an exchange may stay dispatched before it is
// answered with 504 and evicted.
func WithTimeout(d time.Duration) Option { return func(b *Bridge) { b.timeout = d } }
func WithIDs(g IDGenerator) Option       { return func(b *Bridge) { b.ids = g } }
func WithLogger(l *zap.Logger) Option    { return func(b *Bridge) { b.log = l } }

func New(reg *pending.Registry, p port.Port, opts ...Option) *Bridge {
	b := &Bridge{
		pending: reg,
		port:    p,
		ids:     &Sequence{},
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	return b
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		// Peer went away mid-body: nothing was registered, nothing is sent.
		metrics.RequestAborted()
		b.log.Debug("request body incomplete; discarded",
			zap.String("method", r.Method),
			zap.String("path", requestPath(r)),
			zap.Error(err),
		)
		return
	}

	id := b.ids.Next()
	ex := newExchange()
	if err := b.pending.Register(id, ex); err != nil {
		b.reject(w, id, err)
		return
	}
	metrics.SetPending(b.pending.Len())

	req := message.Request{
		ID:      id,
		Method:  r.Method,
		Path:    requestPath(r),
		Body:    string(body),
		Headers: NormalizeHeaders(traceHeaders(r), r.Host),
	}
	if err := b.port.Send(r.Context(), req); err != nil {
		if b.evict(id) {
			metrics.ObserveExchange(outcomeSendFailed, time.Since(ex.start))
			b.log.Warn("dispatch to core failed", zap.String("id", id), zap.Error(err))
			http.Error(w, "core unavailable", http.StatusBadGateway)
			return
		}
		// The core answered before Send reported the error; honour the answer.
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case res := <-ex.done:
		b.write(w, res, ex.start)
	case <-timer.C:
		if h, ok := b.pending.Resolve(id); ok {
			metrics.SetPending(b.pending.Len())
			b.log.Warn("exchange timed out", zap.String("id", id), zap.Duration("timeout", b.timeout))
			finish(h, message.Response{
				ID:     id,
				Status: http.StatusGatewayTimeout,
				Body:   http.StatusText(http.StatusGatewayTimeout),
			}, outcomeTimeout)
		}
		b.write(w, <-ex.done, ex.start)
	case <-r.Context().Done():
		if b.evict(id) {
			metrics.ObserveExchange(outcomeClientGone, time.Since(ex.start))
			b.log.Debug("client gone; exchange evicted", zap.String("id", id))
		}
	}
}

// Deliver completes the exchange resp belongs to. Responses for unknown or
// already completed ids are dropped.
func (b *Bridge) Deliver(resp message.Response) {
	h, ok := b.pending.Resolve(resp.ID)
	if !ok {
		metrics.ResponseDropped("unknown_id")
		b.log.Debug("response for unknown exchange dropped",
			zap.String("id", resp.ID),
			zap.Int("status", resp.Status),
		)
		return
	}
	metrics.SetPending(b.pending.Len())
	h.Complete(resp)
}

// Drain closes the registry and answers every in-flight exchange with 503.
// It returns how many exchanges were cut short.
func (b *Bridge) Drain() int {
	hs := b.pending.Drain()
	for id, h := range hs {
		finish(h, message.Response{
			ID:     id,
			Status: http.StatusServiceUnavailable,
			Body:   "shutting down",
		}, outcomeDrained)
	}
	metrics.SetPending(0)
	if len(hs) > 0 {
		b.log.Info("drained pending exchanges", zap.Int("count", len(hs)))
	}
	return len(hs)
}

func (b *Bridge) evict(id string) bool {
	_, ok := b.pending.Resolve(id)
	if ok {
		metrics.SetPending(b.pending.Len())
	}
	return ok
}

func (b *Bridge) reject(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, pending.ErrFull), errors.Is(err, pending.ErrClosed):
		b.log.Warn("exchange rejected", zap.String("id", id), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		b.log.Error("exchange registration failed", zap.String("id", id), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (b *Bridge) write(w http.ResponseWriter, res result, start time.Time) {
	metrics.ObserveExchange(res.outcome, time.Since(start))
	resp := res.resp
	status := resp.Status
	if status < 200 || status > 599 {
		b.log.Warn("core returned unusable status", zap.String("id", resp.ID), zap.Int("status", status))
		http.Error(w, "invalid status from core", http.StatusBadGateway)
		return
	}
	h := w.Header()
	for k, v := range resp.Headers {
		h.Set(k, v)
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}

// finish completes h with an outcome label when it is one of ours.
func finish(h pending.Handle, resp message.Response, outcome string) {
	if ex, ok := h.(*exchange); ok {
		ex.finish(resp, outcome)
		return
	}
	h.Complete(resp)
}

// traceHeaders is r's header with the current span stamped in by the global
// propagator, so the core can continue the trace. With no propagator
// installed the client's headers are forwarded as they came.
func traceHeaders(r *http.Request) http.Header {
	h := r.Header.Clone()
	otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(h))
	return h
}

// requestPath is the request-target as the client sent it.
func requestPath(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
