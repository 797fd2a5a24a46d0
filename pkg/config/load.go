package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load builds the config in three layers: defaults, then the file at path
// (optional; .yaml/.yml as YAML, anything else as TOML), then env.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := decode(path, b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return toml.Unmarshal(b, cfg)
	}
}

// applyEnv lets the environment override the file. PORT is the one setting
// every deployment is expected to use.
func applyEnv(cfg *Config) error {
	if err := envInt("PORT", &cfg.Port); err != nil {
		return err
	}
	if err := envInt("BRIDGE_EXCHANGE_TIMEOUT_MS", &cfg.ExchangeTimeoutMS); err != nil {
		return err
	}
	if err := envInt("BRIDGE_MAX_PENDING", &cfg.MaxPending); err != nil {
		return err
	}
	envString("BRIDGE_SERVICE", &cfg.Service)
	envString("BRIDGE_ID_STRATEGY", &cfg.IDStrategy)
	envString("BRIDGE_LOG_DIR", &cfg.Log.Dir)
	envString("BRIDGE_LOG_LEVEL", &cfg.Log.Level)
	envString("BRIDGE_ADMIN_ADDRESS", &cfg.Admin.Address)
	if v := strings.TrimSpace(os.Getenv("BRIDGE_ADMIN_ENABLE")); v != "" {
		cfg.Admin.Enable = strings.EqualFold(v, "true")
	}

	if v := splitCSV(os.Getenv("BRIDGE_METRICS_SKIP_PATHS")); len(v) > 0 {
		cfg.Metrics.SkipPaths = v
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_OTEL_ENABLE")); v != "" {
		cfg.Telemetry.Enable = strings.EqualFold(v, "true")
	}
	envString("BRIDGE_OTEL_EXPORTER", &cfg.Telemetry.Exporter)
	envString("BRIDGE_OTEL_ENDPOINT", &cfg.Telemetry.Endpoint)

	envString("BRIDGE_TRANSPORT", &cfg.Transport.Kind)
	envString("BRIDGE_LOCAL_CORE", &cfg.Transport.Local.Core)
	envString("REDIS_ADDR", &cfg.Transport.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Transport.Redis.Password)
	if v := splitCSV(os.Getenv("KAFKA_BROKERS")); len(v) > 0 {
		cfg.Transport.Kafka.Brokers = v
	}
	if v := splitCSV(os.Getenv("ELECTRICIAN_TARGET")); len(v) > 0 {
		cfg.Transport.Electrician.Targets = v
	}
	envString("ELECTRICIAN_RX_ADDRESS", &cfg.Transport.Electrician.ListenAddress)
	return nil
}

func envString(k string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		*dst = v
	}
}

func envInt(k string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	*dst = n
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
