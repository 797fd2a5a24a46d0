package serverfx

import (
	"fmt"

	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/electrician"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/joeydtaylor/steeze-bridge/pkg/transport/kafkabus"
	"github.com/joeydtaylor/steeze-bridge/pkg/transport/redisbus"
	"go.uber.org/zap"
)

// providePort builds the transport named by transport.kind. Nothing connects
// until the lifecycle starts the port.
func providePort(cfg config.Config, zl *zap.Logger) (port.Port, error) {
	t := cfg.Transport
	log := zl.Named("port").With(zap.String("kind", t.Kind))
	switch t.Kind {
	case config.TransportLocal:
		core, ok := port.LookupCore(t.Local.Core)
		if !ok {
			return nil, fmt.Errorf("serverfx: no local core named %q", t.Local.Core)
		}
		return port.NewLocal(core, t.Local.BufferSize), nil
	case config.TransportRedis:
		return redisbus.New(t.Redis, log), nil
	case config.TransportKafka:
		return kafkabus.New(t.Kafka, log), nil
	case config.TransportElectrician:
		return electrician.New(t.Electrician, log), nil
	default:
		return nil, fmt.Errorf("serverfx: unknown transport %q", t.Kind)
	}
}
