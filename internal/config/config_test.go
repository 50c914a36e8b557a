package config

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"tcp", "Budget_Chat"}, nil, io.Discard)
	require.NoError(t, err)

	require.Equal(t, TransportTCP, cfg.Transport)
	require.Equal(t, "budgetchat", cfg.Protocol)
	require.Equal(t, 7878, cfg.Port)
	require.Equal(t, 10, cfg.Workers)
	require.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	require.Equal(t, LaneDedicated, cfg.WriterLane)
	require.Equal(t, "0.0.0.0:7878", cfg.Addr())
}

func TestParseEnvironmentThenFlags(t *testing.T) {
	getenv := env(map[string]string{
		"PORT":             "9000",
		"CONCURRENCY":      "4",
		"WRITER_LANE":      "POOL",
		"SHUTDOWN_TIMEOUT": "5s",
		"REDIS_ADDR":       "redis:6379",
	})

	cfg, err := Parse([]string{"-port", "9100", "udp", "unusual-database-program"}, getenv, io.Discard)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Port, "flags override the environment")
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, LanePool, cfg.WriterLane)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, TransportUDP, cfg.Transport)
	require.Equal(t, "unusualdatabaseprogram", cfg.Protocol)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"no transport", nil, nil},
		{"unknown transport", []string{"sctp", "x"}, nil},
		{"zero workers", []string{"-workers", "0", "tcp", "x"}, nil},
		{"negative workers env", []string{"tcp", "x"}, map[string]string{"CONCURRENCY": "-2"}},
		{"non-numeric workers env", []string{"tcp", "x"}, map[string]string{"CONCURRENCY": "many"}},
		{"port out of range", []string{"-port", "70000", "tcp", "x"}, nil},
		{"bad lane", []string{"-writer-lane", "shared", "tcp", "x"}, nil},
		{"bad duration env", []string{"tcp", "x"}, map[string]string{"POLL_INTERVAL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, env(tt.env), io.Discard)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseHelp(t *testing.T) {
	_, err := Parse([]string{"-h"}, nil, io.Discard)
	require.ErrorIs(t, err, flag.ErrHelp)
}
