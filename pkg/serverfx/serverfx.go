// Package serverfx assembles the bridge process: config, logging, the pending
// registry, the port to the core, the bridge handler and both listeners.
package serverfx

import (
	"context"
	"net/http"
	"os"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/pending"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/joeydtaylor/steeze-bridge/pkg/telemetry"
	"github.com/joeydtaylor/steeze-bridge/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options allow per-deployment env keys without code changes.
type Options struct {
	Service       string // logs and otel span names
	ConfigEnv     string // env var naming the config file
	DefaultConfig string
}

func DefaultOptions() Options {
	return Options{
		Service:       "bridge",
		ConfigEnv:     "BRIDGE_CONFIG",
		DefaultConfig: "bridge.toml",
	}
}

func Module(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(provideConfig),

		bundlefx.Module,
		fx.Provide(provideTelemetry),

		fx.Provide(provideRegistry),
		fx.Provide(providePort),
		fx.Provide(provideBridge),

		fx.Provide(fx.Annotate(provideAppRouter, fx.ResultTags(`name:"app"`))),
		fx.Provide(fx.Annotate(
			provideAdminRouter,
			fx.ParamTags(`name:"metrics"`),
			fx.ResultTags(`name:"admin"`),
		)),
		fx.Provide(provideServer),

		fx.Invoke(registerHooks),
	)
}

func provideConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(envOr(opts.ConfigEnv, opts.DefaultConfig))
	if err != nil {
		return config.Config{}, err
	}
	if opts.Service != "" && cfg.Service == config.Default().Service {
		cfg.Service = opts.Service
	}
	return cfg, nil
}

// provideTelemetry installs the global tracer provider; spans are flushed
// after the listeners have stopped.
func provideTelemetry(lc fx.Lifecycle, cfg config.Config) (*telemetry.Provider, error) {
	p, err := telemetry.New(context.Background(), cfg.Telemetry, cfg.Service)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: p.Shutdown})
	return p, nil
}

func provideRegistry(cfg config.Config) *pending.Registry {
	return pending.New(pending.WithCapacity(cfg.MaxPending))
}

func provideBridge(cfg config.Config, reg *pending.Registry, p port.Port, zl *zap.Logger) (*bridge.Bridge, error) {
	ids, err := bridge.NewIDGenerator(cfg.IDs())
	if err != nil {
		return nil, err
	}
	return bridge.New(reg, p,
		bridge.WithTimeout(cfg.ExchangeTimeout()),
		bridge.WithIDs(ids),
		bridge.WithLogger(zl.Named("bridge")),
	), nil
}

type appRouterDeps struct {
	fx.In
	Cfg       config.Config
	Bridge    *bridge.Bridge
	LogMW     *logger.Middleware
	RateLimit func(http.Handler) http.Handler `name:"ratelimit"`
	Telemetry *telemetry.Provider
}

func provideAppRouter(d appRouterDeps) http.Handler {
	return bridge.BuildRouter(bridge.BuildDeps{
		Bridge:      d.Bridge,
		LogMW:       d.LogMW,
		RateLimit:   d.RateLimit,
		Router:      httpx.NewChi(),
		Service:     d.Cfg.Service,
		Tracer:      d.Telemetry.TracerProvider(),
		MetricsSkip: d.Cfg.Metrics.SkipPaths,
	})
}

func provideAdminRouter(metrics http.Handler) http.Handler {
	return bridge.BuildAdminRouter(httpx.NewChi(), metrics)
}

type hookDeps struct {
	fx.In
	Log        *zap.Logger
	Bridge     *bridge.Bridge
	Port       port.Port
	Server     *Server
	Shutdowner fx.Shutdowner
}

// registerHooks starts the port before the listeners so no request can be
// sent to a port that is not running. Stop runs in reverse after the drain.
func registerHooks(lc fx.Lifecycle, d hookDeps) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Port.OnMessage(d.Bridge.Deliver)
			if err := d.Port.Start(ctx); err != nil {
				return err
			}
			if err := d.Server.Start(func(err error) {
				d.Log.Error("listener failed; shutting down", zap.Error(err))
				_ = d.Shutdowner.Shutdown(fx.ExitCode(1))
			}); err != nil {
				_ = d.Port.Stop()
				return err
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			n := d.Bridge.Drain()
			d.Log.Info("bridge stopping", zap.Int("drained", n))
			err := d.Server.Shutdown(ctx)
			if perr := d.Port.Stop(); perr != nil {
				d.Log.Warn("port stop", zap.Error(perr))
			}
			_ = d.Log.Sync()
			return err
		},
	})
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
