// Package config holds the bridge process configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TransportLocal       = "local"
	TransportRedis       = "redis"
	TransportKafka       = "kafka"
	TransportElectrician = "electrician"

	IDSequence = "sequence"
	IDUUID     = "uuid"
)

// Config is the top-level file layout. Every field can also come from env; see Load.
type Config struct {
	Port              int       `toml:"port" yaml:"port"`
	Service           string    `toml:"service" yaml:"service"`
	ExchangeTimeoutMS int       `toml:"exchange_timeout_ms" yaml:"exchange_timeout_ms"`
	MaxPending        int       `toml:"max_pending" yaml:"max_pending"`
	IDStrategy        string    `toml:"id_strategy" yaml:"id_strategy"`
	Log               Log       `toml:"log" yaml:"log"`
	Admin             Admin     `toml:"admin" yaml:"admin"`
	RateLimit         RateLimit `toml:"rate_limit" yaml:"rate_limit"`
	Metrics           Metrics   `toml:"metrics" yaml:"metrics"`
	Telemetry         Telemetry `toml:"telemetry" yaml:"telemetry"`
	Transport         Transport `toml:"transport" yaml:"transport"`
}

type Log struct {
	Dir   string `toml:"dir" yaml:"dir"`
	Level string `toml:"level" yaml:"level"`
}

// Admin is the side listener for /metrics and /ping.
type Admin struct {
	Enable  bool   `toml:"enable" yaml:"enable"`
	Address string `toml:"address" yaml:"address"`
}

// RateLimit is off while Requests is 0.
type RateLimit struct {
	Requests int `toml:"requests" yaml:"requests"`
	WindowMS int `toml:"window_ms" yaml:"window_ms"`
}

// Metrics.SkipPaths are exact request paths left out of the HTTP collectors.
type Metrics struct {
	SkipPaths []string `toml:"skip_paths" yaml:"skip_paths"`
}

// Telemetry drives the OpenTelemetry tracer provider. Exporter is "grpc" or
// "http" (OTLP); SampleRate is clamped to [0, 1].
type Telemetry struct {
	Enable     bool    `toml:"enable" yaml:"enable"`
	Exporter   string  `toml:"exporter" yaml:"exporter"`
	Endpoint   string  `toml:"endpoint" yaml:"endpoint"`
	SampleRate float64 `toml:"sample_rate" yaml:"sample_rate"`
}

type Transport struct {
	Kind        string      `toml:"kind" yaml:"kind"`
	Local       Local       `toml:"local" yaml:"local"`
	Redis       Redis       `toml:"redis" yaml:"redis"`
	Kafka       Kafka       `toml:"kafka" yaml:"kafka"`
	Electrician Electrician `toml:"electrician" yaml:"electrician"`
}

type Local struct {
	Core       string `toml:"core" yaml:"core"`
	BufferSize int    `toml:"buffer_size" yaml:"buffer_size"`
}

type Redis struct {
	Addr            string `toml:"addr" yaml:"addr"`
	Password        string `toml:"password" yaml:"password"`
	DB              int    `toml:"db" yaml:"db"`
	RequestChannel  string `toml:"request_channel" yaml:"request_channel"`
	ResponseChannel string `toml:"response_channel" yaml:"response_channel"`
}

// Kafka.GroupPrefix names the response consumer group. Each bridge instance
// joins its own group, <prefix>-<uuid>, so every instance sees every response.
type Kafka struct {
	Brokers       []string `toml:"brokers" yaml:"brokers"`
	RequestTopic  string   `toml:"request_topic" yaml:"request_topic"`
	ResponseTopic string   `toml:"response_topic" yaml:"response_topic"`
	GroupPrefix   string   `toml:"group_prefix" yaml:"group_prefix"`
}

// Electrician: requests leave through a forward relay to Targets, responses
// arrive on a receiving relay bound to ListenAddress.
type Electrician struct {
	Targets       []string `toml:"targets" yaml:"targets"`
	ListenAddress string   `toml:"listen_address" yaml:"listen_address"`
	BufferSize    int      `toml:"buffer_size" yaml:"buffer_size"`
}

func Default() Config {
	return Config{
		Port:              8080,
		Service:           "bridge",
		ExchangeTimeoutMS: 30000,
		MaxPending:        10000,
		Log:               Log{Dir: "log", Level: "info"},
		Admin:             Admin{Enable: true, Address: ":9090"},
		RateLimit:         RateLimit{WindowMS: 60000},
		Telemetry:         Telemetry{Exporter: "grpc", Endpoint: "localhost:4317", SampleRate: 1},
		Transport: Transport{
			Kind:  TransportLocal,
			Local: Local{Core: "echo", BufferSize: 1024},
			Redis: Redis{
				Addr:            "localhost:6379",
				RequestChannel:  "bridge:requests",
				ResponseChannel: "bridge:responses",
			},
			Kafka: Kafka{
				RequestTopic:  "bridge-requests",
				ResponseTopic: "bridge-responses",
				GroupPrefix:   "bridge",
			},
			Electrician: Electrician{ListenAddress: "localhost:50071", BufferSize: 1024},
		},
	}
}

func (c Config) ListenAddress() string { return fmt.Sprintf(":%d", c.Port) }

func (c Config) ExchangeTimeout() time.Duration {
	return time.Duration(c.ExchangeTimeoutMS) * time.Millisecond
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMS) * time.Millisecond
}

// IDs is the id strategy in effect. Unset means sequence for the local
// transport and uuid for the others, where several bridges may share one
// request channel and see each other's responses.
func (c Config) IDs() string {
	if c.IDStrategy != "" {
		return c.IDStrategy
	}
	if c.Transport.Kind == TransportLocal {
		return IDSequence
	}
	return IDUUID
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ExchangeTimeoutMS <= 0 {
		errs = append(errs, errors.New("exchange_timeout_ms must be > 0"))
	}
	if c.MaxPending < 0 {
		errs = append(errs, errors.New("max_pending must be >= 0"))
	}
	switch c.IDStrategy {
	case "", IDUUID:
	case IDSequence:
		if c.Transport.Kind != TransportLocal {
			errs = append(errs, fmt.Errorf("id_strategy sequence repeats across instances; transport %q needs uuid", c.Transport.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown id_strategy %q", c.IDStrategy))
	}
	if c.Telemetry.Enable {
		switch c.Telemetry.Exporter {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("unknown telemetry.exporter %q", c.Telemetry.Exporter))
		}
		if strings.TrimSpace(c.Telemetry.Endpoint) == "" {
			errs = append(errs, errors.New("telemetry.endpoint required when telemetry is enabled"))
		}
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.WindowMS <= 0 {
		errs = append(errs, errors.New("rate_limit.window_ms must be > 0 when rate_limit.requests is set"))
	}
	if c.Admin.Enable && strings.TrimSpace(c.Admin.Address) == "" {
		errs = append(errs, errors.New("admin.address required when admin is enabled"))
	}

	t := c.Transport
	switch t.Kind {
	case TransportLocal:
		if t.Local.Core == "" {
			errs = append(errs, errors.New("transport.local.core required"))
		}
	case TransportRedis:
		if t.Redis.Addr == "" || t.Redis.RequestChannel == "" || t.Redis.ResponseChannel == "" {
			errs = append(errs, errors.New("transport.redis needs addr, request_channel and response_channel"))
		}
	case TransportKafka:
		if len(t.Kafka.Brokers) == 0 || t.Kafka.RequestTopic == "" || t.Kafka.ResponseTopic == "" || t.Kafka.GroupPrefix == "" {
			errs = append(errs, errors.New("transport.kafka needs brokers, request_topic, response_topic and group_prefix"))
		}
	case TransportElectrician:
		if len(t.Electrician.Targets) == 0 || t.Electrician.ListenAddress == "" {
			errs = append(errs, errors.New("transport.electrician needs targets and listen_address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport.kind %q", t.Kind))
	}
	return errors.Join(errs...)
}
