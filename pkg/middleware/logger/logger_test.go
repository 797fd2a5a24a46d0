package logger

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareWritesAccessEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMiddleware(zap.New(core))

	h := chimd.RequestID(m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("made"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/things?x=1", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["httpMethod"])
	assert.Equal(t, "/things", fields["uri"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
	assert.EqualValues(t, 4, fields["responseSize"])
	assert.NotEmpty(t, fields["requestId"])
}

func TestMiddlewareLeavesBodyUnread(t *testing.T) {
	m := NewMiddleware(nil)
	var seen string
	h := m.Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		b := make([]byte, 16)
		n, _ := r.Body.Read(b)
		seen = string(b[:n])
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/", strings.NewReader("payload")))
	assert.Equal(t, "payload", seen)
}

func TestNewLogWritesFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLog(dir, "system.log", zapcore.InfoLevel)
	l.Info("hello", zap.String("k", "v"))
	_ = l.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "system.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"k":"v"`)
}
