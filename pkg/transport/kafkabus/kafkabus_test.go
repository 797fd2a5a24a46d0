package kafkabus

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

// chanReader serves messages from a channel until ctx ends.
type chanReader struct {
	msgs   chan kafka.Message
	errs   chan error
	closed bool
}

func newChanReader() *chanReader {
	return &chanReader{msgs: make(chan kafka.Message, 16), errs: make(chan error, 1)}
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case err := <-r.errs:
		return kafka.Message{}, err
	case m := <-r.msgs:
		return m, nil
	}
}
func (r *chanReader) Close() error { r.closed = true; return nil }

type recWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}
func (w *recWriter) Close() error { w.closed = true; return nil }

func testBus(t *testing.T) (*Bus, *chanReader, *recWriter) {
	r, w := newChanReader(), &recWriter{}
	cfg := config.Kafka{Brokers: []string{"k:9092"}, RequestTopic: "rq", ResponseTopic: "rs", GroupPrefix: "g"}
	return newBus(cfg, "g-test", zaptest.NewLogger(t), w, func() reader { return r }), r, w
}

func TestEachInstanceJoinsItsOwnGroup(t *testing.T) {
	cfg := config.Kafka{Brokers: []string{"k:9092"}, RequestTopic: "rq", ResponseTopic: "rs", GroupPrefix: "edge"}
	a, b := New(cfg, nil), New(cfg, nil)
	defer a.Stop()
	defer b.Stop()

	assert.True(t, strings.HasPrefix(a.group, "edge-"), a.group)
	assert.True(t, strings.HasPrefix(b.group, "edge-"), b.group)
	assert.NotEqual(t, a.group, b.group)

	rc := readerConfig(cfg, a.group)
	assert.Equal(t, a.group, rc.GroupID)
	assert.Equal(t, "rs", rc.Topic)
	assert.Equal(t, kafka.LastOffset, rc.StartOffset)
}

func value(t *testing.T, resp message.Response) kafka.Message {
	b, err := message.EncodeResponse(resp)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestSendKeysByID(t *testing.T) {
	bus, _, w := testBus(t)
	require.NoError(t, bus.Send(context.Background(), message.Request{ID: "req-9", Method: "GET", Path: "/x"}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "req-9", string(w.msgs[0].Key))
	req, err := message.DecodeRequest(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "/x", req.Path)
}

func TestSendWrapsWriterError(t *testing.T) {
	bus, _, w := testBus(t)
	w.err = errors.New("leader not available")
	err := bus.Send(context.Background(), message.Request{ID: "req-1"})
	assert.ErrorContains(t, err, "req-1")
	assert.ErrorIs(t, err, w.err)
}

func TestConsumeDeliversInOrderAndSkipsGarbage(t *testing.T) {
	bus, r, w := testBus(t)
	got := make(chan message.Response, 4)
	bus.OnMessage(func(resp message.Response) { got <- resp })
	require.NoError(t, bus.Start(context.Background()))

	r.msgs <- value(t, message.Response{ID: "req-2", Status: 200})
	r.msgs <- kafka.Message{Value: []byte("not json")}
	r.msgs <- value(t, message.Response{ID: "req-1", Status: 404})

	for _, want := range []string{"req-2", "req-1"} {
		select {
		case resp := <-got:
			assert.Equal(t, want, resp.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("waiting for %s", want)
		}
	}

	require.NoError(t, bus.Stop())
	assert.True(t, r.closed)
	assert.True(t, w.closed)
	assert.ErrorIs(t, bus.Send(context.Background(), message.Request{ID: "req-3"}), port.ErrStopped)
}

func TestConsumerEndsOnEOF(t *testing.T) {
	bus, r, _ := testBus(t)
	require.NoError(t, bus.Start(context.Background()))
	r.errs <- io.EOF

	select {
	case <-bus.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not exit")
	}
	require.NoError(t, bus.Stop())
}

func TestStartTwice(t *testing.T) {
	bus, _, _ := testBus(t)
	require.NoError(t, bus.Start(context.Background()))
	assert.Error(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop())
}
