// Package kafkabus is a port over Kafka. Requests are written to the request
// topic keyed by correlation id; responses are consumed from the response
// topic in a consumer group of this instance's own, so replicas sharing the
// topic each see every response.
package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const retryDelay = time.Second

type Bus struct {
	cfg   config.Kafka
	group string
	log   *zap.Logger

	w          writer
	openReader func() reader
	r          reader

	mu      sync.RWMutex
	handler port.Handler

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ port.Port = (*Bus)(nil)

func New(cfg config.Kafka, log *zap.Logger) *Bus {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.RequestTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	group := cfg.GroupPrefix + "-" + uuid.NewString()
	return newBus(cfg, group, log, w, func() reader {
		return kafka.NewReader(readerConfig(cfg, group))
	})
}

// readerConfig starts a fresh group at the newest offset; responses written
// before this instance started belong to nobody it is waiting for.
func readerConfig(cfg config.Kafka, group string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     group,
		Topic:       cfg.ResponseTopic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     250 * time.Millisecond,
	}
}

func newBus(cfg config.Kafka, group string, log *zap.Logger, w writer, open func() reader) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{cfg: cfg, group: group, log: log, w: w, openReader: open, done: make(chan struct{})}
}

func (b *Bus) OnMessage(h port.Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Start opens the response consumer. The writer connects on first send.
func (b *Bus) Start(context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.New("kafkabus: already started")
	}
	if b.stopped.Load() {
		return port.ErrStopped
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.r = b.openReader()
	go b.consume(ctx)

	b.log.Info("kafka port started",
		zap.Strings("brokers", b.cfg.Brokers),
		zap.String("requests", b.cfg.RequestTopic),
		zap.String("responses", b.cfg.ResponseTopic),
		zap.String("group", b.group),
	)
	return nil
}

func (b *Bus) consume(ctx context.Context) {
	defer close(b.done)
	for {
		m, err := b.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			b.log.Warn("kafka read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		resp, err := message.DecodeResponse(m.Value)
		if err != nil {
			b.log.Warn("undecodable response dropped",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
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
	msg := kafka.Message{
		Key:     []byte(req.ID),
		Value:   payload,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(message.ContentType)}},
	}
	if err := b.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafkabus: write %s: %w", req.ID, err)
	}
	return nil
}

func (b *Bus) Stop() error {
	var err error
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		if b.cancel != nil {
			b.cancel()
			<-b.done
			err = b.r.Close()
		}
		err = errors.Join(err, b.w.Close())
	})
	return err
}
