package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Relay defaults.
const (
	DefaultListenAddr           = ":8080"
	DefaultMaxMessagesPerSecond = 50
	DefaultShutdownTimeout      = 10 * time.Second
)

// Server holds relay configuration.
type Server struct {
	ListenAddr string

	// StatsToken guards /stats. An empty token disables the endpoint.
	StatsToken string

	LogLevel  string
	LogFormat string

	// MaxMessagesPerSecond is the per-connection inbound message rate.
	MaxMessagesPerSecond float64

	// AllowedOrigins lists the Origin headers accepted on /ws. Empty allows
	// any origin.
	AllowedOrigins []string

	ShutdownTimeout time.Duration
}

// LoadServer reads relay configuration from the environment.
func LoadServer() (*Server, error) {
	cfg := &Server{
		ListenAddr:           firstNonEmpty(os.Getenv("LISTEN_ADDR"), DefaultListenAddr),
		StatsToken:           os.Getenv("STATS_TOKEN"),
		LogLevel:             firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		LogFormat:            firstNonEmpty(os.Getenv("LOG_FORMAT"), "text"),
		MaxMessagesPerSecond: DefaultMaxMessagesPerSecond,
		ShutdownTimeout:      DefaultShutdownTimeout,
	}

	if v := os.Getenv("MAX_MESSAGES_PER_SECOND"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MAX_MESSAGES_PER_SECOND %q", v)
		}
		cfg.MaxMessagesPerSecond = n
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		cfg.ShutdownTimeout = d
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}
