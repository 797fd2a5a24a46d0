package electrician

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadRelayEnvDefaults(t *testing.T) {
	for _, k := range []string{"ELECTRICIAN_TLS_ENABLE", "ELECTRICIAN_ENCRYPT", "ELECTRICIAN_AES256_KEY_HEX", "OAUTH_ISSUER_BASE", "OAUTH_REFRESH_LEEWAY"} {
		t.Setenv(k, "")
	}
	env, err := loadRelayEnv()
	require.NoError(t, err)
	assert.False(t, env.useTLS)
	assert.Equal(t, "keys/tls/client.crt", env.tlsCrt)
	assert.Equal(t, "keys/tls/server.key", env.rxKey)
	assert.Equal(t, 20*time.Second, env.leeway)
	assert.False(t, env.oauthClient())
	assert.Empty(t, env.aesKey)
}

func TestLoadRelayEnvFeatures(t *testing.T) {
	t.Setenv("ELECTRICIAN_TLS_ENABLE", "TRUE")
	t.Setenv("ELECTRICIAN_COMPRESS", "snappy")
	t.Setenv("ELECTRICIAN_ENCRYPT", "aesgcm")
	t.Setenv("ELECTRICIAN_AES256_KEY_HEX", strings.Repeat("ab", 32))
	t.Setenv("ELECTRICIAN_STATIC_HEADERS", "x-tenant=local, x-app = bridge ,junk")
	t.Setenv("OAUTH_ISSUER_BASE", "https://issuer.local")
	t.Setenv("OAUTH_CLIENT_ID", "bridge")
	t.Setenv("OAUTH_CLIENT_SECRET", "s3cret")
	t.Setenv("OAUTH_SCOPES", "write:data, read:data")
	t.Setenv("OAUTH_REFRESH_LEEWAY", "5s")

	env, err := loadRelayEnv()
	require.NoError(t, err)
	assert.True(t, env.useTLS)
	assert.True(t, env.useSnappy)
	assert.True(t, env.useAESGCM)
	assert.Len(t, env.aesKey, 32)
	assert.Equal(t, map[string]string{"x-tenant": "local", "x-app": "bridge"}, env.staticHeaders)
	assert.True(t, env.oauthClient())
	assert.Equal(t, []string{"write:data", "read:data"}, env.scopes)
	assert.Equal(t, 5*time.Second, env.leeway)
}

func TestLoadRelayEnvRejectsBadKey(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		t.Setenv("ELECTRICIAN_AES256_KEY_HEX", "abcd")
		_, err := loadRelayEnv()
		assert.ErrorIs(t, err, errAESKey)
	})
	t.Run("encrypt without key", func(t *testing.T) {
		t.Setenv("ELECTRICIAN_AES256_KEY_HEX", "")
		t.Setenv("ELECTRICIAN_ENCRYPT", "aesgcm")
		_, err := loadRelayEnv()
		assert.ErrorIs(t, err, errAESKey)
	})
}

func TestSendBeforeStart(t *testing.T) {
	p := New(config.Electrician{Targets: []string{"localhost:1"}, ListenAddress: "localhost:0"}, nil)
	err := p.Send(context.Background(), message.Request{ID: "req-1"})
	assert.ErrorIs(t, err, port.ErrStopped)
	assert.NoError(t, p.Stop())
}

func TestTapHandsResponsesToHandler(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := New(config.Electrician{}, zap.New(core))

	var got []message.Response
	p.OnMessage(func(r message.Response) { got = append(got, r) })

	_, err := p.tap(message.Response{ID: "req-7", Status: 200, Body: "ok"})
	require.NoError(t, err)
	_, err = p.tap(message.Response{Status: 200})
	assert.ErrorIs(t, err, errMissingID)

	require.Len(t, got, 1)
	assert.Equal(t, "req-7", got[0].ID)
	assert.Equal(t, 1, logs.FilterMessage("electrician response without id dropped").Len())
}

func TestStartFailsFastOnBadEnv(t *testing.T) {
	t.Setenv("ELECTRICIAN_AES256_KEY_HEX", "zz")
	p := New(config.Electrician{Targets: []string{"localhost:1"}, ListenAddress: "localhost:0"}, nil)
	assert.ErrorIs(t, p.Start(context.Background()), errAESKey)
	assert.Error(t, p.Start(context.Background()), "a port starts once")
}
