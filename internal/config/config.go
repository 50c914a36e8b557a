// Package config reads process configuration from flags, falling back to
// environment variables for defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

const (
	TransportTCP = "tcp"
	TransportUDP = "udp"

	LaneDedicated = "dedicated"
	LanePool      = "pool"
)

// Config is the validated process configuration.
type Config struct {
	Transport string
	Protocol  string

	Host            string
	Port            int
	Workers         int
	PollInterval    time.Duration
	MaxLineLength   int
	WriterLane      string
	ShutdownTimeout time.Duration

	RedisAddr string
	RedisKey  string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            7878,
		Workers:         10,
		PollInterval:    100 * time.Millisecond,
		MaxLineLength:   4096,
		WriterLane:      LaneDedicated,
		ShutdownTimeout: 30 * time.Second,
		RedisKey:        "protosrv:kv",
	}
}

// Addr returns the host:port to bind.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Parse reads "[flags] <tcp|udp> <protocol>" from args. getenv supplies
// defaults for unset flags (PORT, CONCURRENCY, ...).
func Parse(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	cfg := Default()
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("protosrv", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: protosrv [flags] <tcp|udp> <protocol>\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.Host, "host", cfg.Host, "Host to bind (env HOST)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Port to bind (env PORT)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker pool size (env CONCURRENCY)")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "Accept/read poll interval (env POLL_INTERVAL)")
	fs.IntVar(&cfg.MaxLineLength, "max-line", cfg.MaxLineLength, "Maximum buffered line length in bytes (env MAX_LINE_LENGTH)")
	fs.StringVar(&cfg.WriterLane, "writer-lane", cfg.WriterLane, "Where chat writers run: dedicated or pool (env WRITER_LANE)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown budget (env SHUTDOWN_TIMEOUT)")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the key-value store; empty keeps it in memory (env REDIS_ADDR)")
	fs.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis hash holding key-value pairs (env REDIS_KEY)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) > 0 {
		cfg.Transport = strings.ToLower(rest[0])
	}
	if len(rest) > 1 {
		cfg.Protocol = NormalizeProtocol(rest[1])
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NormalizeProtocol lower-cases name and drops '_' and '-'.
func NormalizeProtocol(name string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(name))
}

// Validate checks the boundary constraints the server core relies on.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportTCP, TransportUDP:
	case "":
		return fmt.Errorf("%w: no transport selected, available: tcp, udp", ErrInvalid)
	default:
		return fmt.Errorf("%w: unknown transport %q, available: tcp, udp", ErrInvalid, c.Transport)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: worker count must be a positive integer", ErrInvalid)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalid)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("%w: max line length must be positive", ErrInvalid)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalid)
	}

	switch c.WriterLane {
	case LaneDedicated, LanePool:
	default:
		return fmt.Errorf("%w: unknown writer lane %q, available: dedicated, pool", ErrInvalid, c.WriterLane)
	}

	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if host := getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if err := envInt(getenv, "PORT", &cfg.Port); err != nil {
		return err
	}
	if err := envInt(getenv, "CONCURRENCY", &cfg.Workers); err != nil {
		return err
	}
	if err := envDuration(getenv, "POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return err
	}
	if err := envInt(getenv, "MAX_LINE_LENGTH", &cfg.MaxLineLength); err != nil {
		return err
	}
	if lane := getenv("WRITER_LANE"); lane != "" {
		cfg.WriterLane = strings.ToLower(lane)
	}
	if err := envDuration(getenv, "SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if addr := getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if key := getenv("REDIS_KEY"); key != "" {
		cfg.RedisKey = key
	}
	return nil
}

func envInt(getenv func(string) string, key string, dst *int) error {
	value := getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: environment variable %s must be an integer, got %q", ErrInvalid, key, value)
	}
	*dst = n
	return nil
}

func envDuration(getenv func(string) string, key string, dst *time.Duration) error {
	value := getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: environment variable %s must be a duration, got %q", ErrInvalid, key, value)
	}
	*dst = d
	return nil
}
