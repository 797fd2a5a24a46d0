package electrician

import (
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"time"
)

// relayEnv carries the relay security knobs. They stay in env rather than
// the config file so keys and secrets never land in bridge.toml.
//
//	ELECTRICIAN_TLS_ENABLE, ELECTRICIAN_TLS_CLIENT_CRT, ELECTRICIAN_TLS_CLIENT_KEY, ELECTRICIAN_TLS_CA
//	ELECTRICIAN_TLS_INSECURE     (token fetch only; dev)
//	ELECTRICIAN_RX_TLS_ENABLE, ELECTRICIAN_RX_TLS_SERVER_CRT, ELECTRICIAN_RX_TLS_SERVER_KEY,
//	ELECTRICIAN_RX_TLS_CA, ELECTRICIAN_RX_TLS_SERVER_NAME
//	ELECTRICIAN_COMPRESS         "snappy" | ""
//	ELECTRICIAN_ENCRYPT          "aesgcm" | ""
//	ELECTRICIAN_AES256_KEY_HEX   64 hex chars; also the receiver's decryption key
//	ELECTRICIAN_STATIC_HEADERS   "k=v,k2=v2"
//	OAUTH_ISSUER_BASE, OAUTH_JWKS_URL, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET,
//	OAUTH_SCOPES, OAUTH_REQUIRED_AUD, OAUTH_REFRESH_LEEWAY
type relayEnv struct {
	useTLS      bool
	tlsCrt      string
	tlsKey      string
	tlsCA       string
	tlsInsecure bool

	rxTLS  bool
	rxCrt  string
	rxKey  string
	rxCA   string
	rxName string

	useSnappy     bool
	useAESGCM     bool
	aesKey        string // raw 32 bytes as the builder API expects
	staticHeaders map[string]string

	issuer       string
	jwks         string
	clientID     string
	clientSecret string
	scopes       []string
	requiredAud  []string
	leeway       time.Duration
}

var errAESKey = errors.New("electrician: ELECTRICIAN_AES256_KEY_HEX must be 64 hex chars (32 bytes)")

func loadRelayEnv() (relayEnv, error) {
	e := relayEnv{
		useTLS:      strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_ENABLE"), "true"),
		tlsCrt:      envOr("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt"),
		tlsKey:      envOr("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key"),
		tlsCA:       envOr("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt"),
		tlsInsecure: strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_INSECURE"), "true"),

		rxTLS:  strings.EqualFold(os.Getenv("ELECTRICIAN_RX_TLS_ENABLE"), "true"),
		rxCrt:  envOr("ELECTRICIAN_RX_TLS_SERVER_CRT", "keys/tls/server.crt"),
		rxKey:  envOr("ELECTRICIAN_RX_TLS_SERVER_KEY", "keys/tls/server.key"),
		rxCA:   envOr("ELECTRICIAN_RX_TLS_CA", "keys/tls/ca.crt"),
		rxName: os.Getenv("ELECTRICIAN_RX_TLS_SERVER_NAME"),

		useSnappy:     strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy"),
		useAESGCM:     strings.EqualFold(os.Getenv("ELECTRICIAN_ENCRYPT"), "aesgcm"),
		staticHeaders: parseKV(os.Getenv("ELECTRICIAN_STATIC_HEADERS")),

		issuer:       strings.TrimSpace(os.Getenv("OAUTH_ISSUER_BASE")),
		jwks:         strings.TrimSpace(os.Getenv("OAUTH_JWKS_URL")),
		clientID:     strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
		clientSecret: strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET")),
		scopes:       splitCSV(os.Getenv("OAUTH_SCOPES")),
		requiredAud:  splitCSV(os.Getenv("OAUTH_REQUIRED_AUD")),
		leeway:       parseDur(os.Getenv("OAUTH_REFRESH_LEEWAY"), 20*time.Second),
	}

	k := strings.TrimSpace(os.Getenv("ELECTRICIAN_AES256_KEY_HEX"))
	switch {
	case k != "":
		raw, err := hex.DecodeString(k)
		if err != nil || len(raw) != 32 {
			return relayEnv{}, errAESKey
		}
		e.aesKey = string(raw)
	case e.useAESGCM:
		return relayEnv{}, errAESKey
	}
	return e, nil
}

// oauthClient reports whether the forward relay should attach a bearer.
func (e relayEnv) oauthClient() bool {
	return e.issuer != "" && e.clientID != "" && e.clientSecret != ""
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
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

func parseKV(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		p := strings.SplitN(kv, "=", 2)
		if len(p) == 2 {
			out[strings.TrimSpace(p[0])] = strings.TrimSpace(p[1])
		}
	}
	return out
}

func parseDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
