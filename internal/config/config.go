package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain              = "warpcall.qzz.io"
	DefaultSTUN                = "stun:stun.l.google.com:19302"
	DefaultReconnectMaxRetries = 8
	DefaultNegotiationTimeout  = 15 * time.Second
	DefaultListenAddr          = ":8080"
)

var ErrRelayWithoutTURN = errors.New("force relay requires a TURN server")

// Config holds application configuration
type Config struct {
	// Domain is the relay domain
	Domain string

	// ServerURL is the relay websocket endpoint, derived from Domain unless
	// set explicitly
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN relay candidates
	ForceRelay bool

	ReconnectMaxRetries int
	NegotiationTimeout  time.Duration

	// ListenAddr is where `serve` binds
	ListenAddr string
}

// Options carries CLI flag overrides. Zero values mean "not set".
type Options struct {
	Domain              string
	ServerURL           string
	STUNServer          string
	TURNServer          string
	TURNUser            string
	TURNPass            string
	ForceRelay          bool
	ReconnectMaxRetries int
	NegotiationTimeout  time.Duration
	ListenAddr          string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Domain:     pick(opts.Domain, "DOMAIN", DefaultDomain),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ListenAddr: pick(opts.ListenAddr, "LISTEN_ADDR", DefaultListenAddr),
	}
	cfg.ServerURL = pick(opts.ServerURL, "SERVER_URL", fmt.Sprintf("wss://%s/ws", cfg.Domain))

	cfg.ForceRelay = opts.ForceRelay
	if !cfg.ForceRelay {
		if v, ok := lookup("FORCE_RELAY"); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid FORCE_RELAY %q: %w", v, err)
			}
			cfg.ForceRelay = b
		}
	}

	cfg.ReconnectMaxRetries = opts.ReconnectMaxRetries
	if cfg.ReconnectMaxRetries <= 0 {
		cfg.ReconnectMaxRetries = DefaultReconnectMaxRetries
		if v, ok := lookup("RECONNECT_MAX_RETRIES"); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid RECONNECT_MAX_RETRIES %q", v)
			}
			cfg.ReconnectMaxRetries = n
		}
	}

	cfg.NegotiationTimeout = opts.NegotiationTimeout
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = DefaultNegotiationTimeout
		if v, ok := lookup("NEGOTIATION_TIMEOUT"); ok {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("invalid NEGOTIATION_TIMEOUT %q", v)
			}
			cfg.NegotiationTimeout = d
		}
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, ErrRelayWithoutTURN
	}
	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to the usual UDP, TCP and TLS endpoints.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?") {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func pick(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v, ok := lookup(env); ok {
		return v
	}
	return fallback
}

func lookup(env string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(env))
	return v, v != ""
}
