// Package redisbus is a port over Redis pub/sub. Requests are published on one
// channel and responses are read from another. Pub/sub does not buffer: a core
// must be subscribed before the bridge sends, and responses published while
// the bridge is down are lost (their exchanges time out).
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Bus struct {
	cfg    config.Redis
	log    *zap.Logger
	client *redis.Client

	mu      sync.RWMutex
	handler port.Handler

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	sub      *redis.PubSub
	done     chan struct{}
}

var _ port.Port = (*Bus)(nil)

func New(cfg config.Redis, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		cfg: cfg,
		log: log,
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
		done: make(chan struct{}),
	}
}

func (b *Bus) OnMessage(h port.Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Start checks the connection and subscribes to the response channel. It
// returns once the subscription is confirmed.
func (b *Bus) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.New("redisbus: already started")
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redisbus: connect %s: %w", b.cfg.Addr, err)
	}

	sub := b.client.Subscribe(context.Background(), b.cfg.ResponseChannel)
	if _, err := sub.Receive(pctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redisbus: subscribe %s: %w", b.cfg.ResponseChannel, err)
	}
	b.sub = sub
	go b.receive(sub.Channel())

	b.log.Info("redis port started",
		zap.String("addr", b.cfg.Addr),
		zap.String("requests", b.cfg.RequestChannel),
		zap.String("responses", b.cfg.ResponseChannel),
	)
	return nil
}

func (b *Bus) receive(ch <-chan *redis.Message) {
	defer close(b.done)
	for msg := range ch {
		resp, err := message.DecodeResponse([]byte(msg.Payload))
		if err != nil {
			b.log.Warn("undecodable response dropped", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		b.mu.RLock()
		h := b.handler
		b.mu.RUnlock()
		if h != nil {
			h(resp)
		}
	}
}

func (b *Bus) Send(ctx context.Context, req message.Request) error {
	if b.stopped.Load() {
		return port.ErrStopped
	}
	payload, err := message.EncodeRequest(req)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.cfg.RequestChannel, payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", req.ID, err)
	}
	return nil
}

// Stop closes the subscription, waits for the receive loop and closes the client.
func (b *Bus) Stop() error {
	var err error
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		if b.sub != nil {
			err = b.sub.Close()
			<-b.done
		}
		err = errors.Join(err, b.client.Close())
	})
	return err
}
