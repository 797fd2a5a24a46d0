// Package electrician carries bridge messages over Electrician relays.
//
//	Send -> Wire[message.Request] -> ForwardRelay -> targets (the core)
//	core -> ReceivingRelay -> Wire[message.Response]{tap} -> handler
//
// Addresses come from config; TLS, compression, encryption and OAuth come from
// env (see relayEnv).
package electrician

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"go.uber.org/zap"
)

var errMissingID = errors.New("electrician: response without id")

type Port struct {
	cfg config.Electrician
	log *zap.Logger

	mu      sync.RWMutex
	handler port.Handler
	submit  func(context.Context, message.Request) error
	stops   []func()
	used    bool
}

var _ port.Port = (*Port)(nil)

func New(cfg config.Electrician, log *zap.Logger) *Port {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	return &Port{cfg: cfg, log: log}
}

func (p *Port) OnMessage(h port.Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// tap runs as the inbound wire's transformer, once per response.
func (p *Port) tap(resp message.Response) (message.Response, error) {
	if resp.ID == "" {
		p.log.Warn("electrician response without id dropped", zap.Int("status", resp.Status))
		return resp, errMissingID
	}
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h != nil {
		h(resp)
	}
	return resp, nil
}

// Start builds and starts both hops. The relays run on their own context
// because the one handed to Start only bounds startup.
func (p *Port) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used {
		return errors.New("electrician: port already started")
	}
	p.used = true

	env, err := loadRelayEnv()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := builder.NewLogger(builder.LoggerWithDevelopment(true))

	in := builder.NewWire[message.Response](
		ctx,
		builder.WireWithLogger[message.Response](logger),
		builder.WireWithTransformer[message.Response](p.tap),
	)
	out := builder.NewWire[message.Request](ctx, builder.WireWithLogger[message.Request](logger))

	type Rq = message.Request
	type Rs = message.Response

	perf := builder.NewPerformanceOptions(env.useSnappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(env.useAESGCM, builder.ENCRYPTION_AES_GCM)
	tlsCli := builder.NewTlsClientConfig(
		env.useTLS, env.tlsCrt, env.tlsKey, env.tlsCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)
	tlsSrv := builder.NewTlsServerConfig(
		env.rxTLS, env.rxCrt, env.rxKey, env.rxCA, env.rxName,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	var fwdStart func(context.Context) error
	var fwdStop func()
	if env.oauthClient() {
		authOpts := builder.NewForwardRelayAuthenticationOptionsOAuth2(nil)
		if env.jwks != "" {
			authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(
				builder.NewForwardRelayOAuth2JWTOptions(env.issuer, env.jwks, env.requiredAud, env.scopes, 300),
			)
		}
		authHTTP := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS13,
					MaxVersion:         tls.VersionTLS13,
					InsecureSkipVerify: env.tlsInsecure, // dev only
				},
			},
		}
		ts := builder.NewForwardRelayRefreshingClientCredentialsSource(
			env.issuer, env.clientID, env.clientSecret, env.scopes, env.leeway, authHTTP,
		)
		f := builder.NewForwardRelay[Rq](
			ctx,
			builder.ForwardRelayWithLogger[Rq](logger),
			builder.ForwardRelayWithTarget[Rq](p.cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[Rq](perf),
			builder.ForwardRelayWithSecurityOptions[Rq](sec, env.aesKey),
			builder.ForwardRelayWithTLSConfig[Rq](tlsCli),
			builder.ForwardRelayWithStaticHeaders[Rq](env.staticHeaders),
			builder.ForwardRelayWithAuthenticationOptions[Rq](authOpts),
			builder.ForwardRelayWithOAuthBearer[Rq](ts),
			builder.ForwardRelayWithInput(out),
		)
		fwdStart, fwdStop = f.Start, f.Stop
	} else {
		f := builder.NewForwardRelay[Rq](
			ctx,
			builder.ForwardRelayWithLogger[Rq](logger),
			builder.ForwardRelayWithTarget[Rq](p.cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[Rq](perf),
			builder.ForwardRelayWithSecurityOptions[Rq](sec, env.aesKey),
			builder.ForwardRelayWithTLSConfig[Rq](tlsCli),
			builder.ForwardRelayWithStaticHeaders[Rq](env.staticHeaders),
			builder.ForwardRelayWithInput(out),
		)
		fwdStart, fwdStop = f.Start, f.Stop
	}

	var rxStart func(context.Context) error
	var rxStop func()
	if env.jwks != "" {
		auth := builder.NewReceivingRelayAuthenticationOptionsOAuth2(
			builder.NewReceivingRelayMergeOAuth2Options(
				builder.NewReceivingRelayOAuth2JWTOptions(env.issuer, env.jwks, env.requiredAud, env.scopes, 300),
				nil,
			),
		)
		rx := builder.NewReceivingRelay[Rs](
			ctx,
			builder.ReceivingRelayWithAddress[Rs](p.cfg.ListenAddress),
			builder.ReceivingRelayWithBufferSize[Rs](uint32(p.cfg.BufferSize)),
			builder.ReceivingRelayWithLogger[Rs](logger),
			builder.ReceivingRelayWithOutput(in),
			builder.ReceivingRelayWithTLSConfig[Rs](tlsSrv),
			builder.ReceivingRelayWithDecryptionKey[Rs](env.aesKey),
			builder.ReceivingRelayWithAuthenticationOptions[Rs](auth),
		)
		rxStart, rxStop = rx.Start, rx.Stop
	} else {
		rx := builder.NewReceivingRelay[Rs](
			ctx,
			builder.ReceivingRelayWithAddress[Rs](p.cfg.ListenAddress),
			builder.ReceivingRelayWithBufferSize[Rs](uint32(p.cfg.BufferSize)),
			builder.ReceivingRelayWithLogger[Rs](logger),
			builder.ReceivingRelayWithOutput(in),
			builder.ReceivingRelayWithTLSConfig[Rs](tlsSrv),
			builder.ReceivingRelayWithDecryptionKey[Rs](env.aesKey),
		)
		rxStart, rxStop = rx.Start, rx.Stop
	}

	steps := []struct {
		name  string
		start func(context.Context) error
		stop  func()
	}{
		{"response wire", in.Start, func() { in.Stop() }},
		{"receiving relay", rxStart, rxStop},
		{"request wire", out.Start, func() { out.Stop() }},
		{"forward relay", fwdStart, fwdStop},
	}
	for _, s := range steps {
		if err := s.start(ctx); err != nil {
			p.halt()
			cancel()
			return fmt.Errorf("electrician: start %s: %w", s.name, err)
		}
		p.stops = append(p.stops, s.stop)
	}
	p.stops = append([]func(){cancel}, p.stops...)

	p.submit = func(ctx context.Context, req message.Request) error { return out.Submit(ctx, req) }
	p.log.Info("electrician port started",
		zap.Strings("targets", p.cfg.Targets),
		zap.String("listen", p.cfg.ListenAddress),
		zap.Bool("tls", env.useTLS),
		zap.Bool("snappy", env.useSnappy),
		zap.Bool("aesgcm", env.useAESGCM),
		zap.Bool("oauth", env.oauthClient()),
	)
	return nil
}

func (p *Port) Send(ctx context.Context, req message.Request) error {
	p.mu.RLock()
	submit := p.submit
	p.mu.RUnlock()
	if submit == nil {
		return port.ErrStopped
	}
	if err := submit(ctx, req); err != nil {
		return fmt.Errorf("electrician: submit %s: %w", req.ID, err)
	}
	return nil
}

func (p *Port) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submit = nil
	p.halt()
	return nil
}

// halt stops whatever has started, last first. Callers hold mu.
func (p *Port) halt() {
	for i := len(p.stops) - 1; i >= 0; i-- {
		p.stops[i]()
	}
	p.stops = nil
}
