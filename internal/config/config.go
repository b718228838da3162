// Package config loads participant and relay configuration from flags,
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default configuration values (production)
const (
	DefaultDomain   = "huddle.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:huddle.qzz.io"
	DefaultTURNUser = "huddle"
	DefaultTURNPass = "huddle-secret"
)

// Config holds participant configuration.
type Config struct {
	// Domain is the relay host, optionally with a port.
	Domain string

	// Insecure selects ws:// and http:// instead of wss:// and https://.
	Insecure bool

	// WebSocketURL is constructed from domain.
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
//
// The server may be given as a bare domain or as a ws://, wss://, http:// or
// https:// URL; plain schemes select an unencrypted connection.
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("SERVER"), os.Getenv("DOMAIN"), DefaultDomain)
	domain, insecure, err := parseServer(server)
	if err != nil {
		return nil, err
	}

	scheme := "wss"
	if insecure {
		scheme = "ws"
	}

	return &Config{
		Domain:       domain,
		Insecure:     insecure,
		WebSocketURL: fmt.Sprintf("%s://%s/ws?codec=msgpack", scheme, domain),
		STUNServer:   firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer:   firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN),
		TURNUser:     firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:     firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
		ForceRelay:   opts.ForceRelay,
	}, nil
}

// GetRoomLink returns the webapp URL for a room code.
func (c *Config) GetRoomLink(code string) string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/r/%s", scheme, c.Domain, code)
}

// GetStatsURL returns the relay's stats endpoint.
func (c *Config) GetStatsURL() string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/stats", scheme, c.Domain)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A server given with
// an explicit port or query is used verbatim.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	if strings.ContainsAny(host, ":?") {
		return []string{c.TURNServer}
	}
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

func parseServer(server string) (domain string, insecure bool, err error) {
	if !strings.Contains(server, "://") {
		return strings.TrimSuffix(server, "/"), false, nil
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", false, fmt.Errorf("invalid server %q: %w", server, err)
	}
	switch u.Scheme {
	case "ws", "http":
		insecure = true
	case "wss", "https":
	default:
		return "", false, fmt.Errorf("invalid server %q: unsupported scheme %q", server, u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid server %q: missing host", server)
	}
	return u.Host, insecure, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
