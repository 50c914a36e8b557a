package app

import (
	"context"
	"log"
	"sort"

	"github.com/ledzpl/protosrv/internal/chat"
	"github.com/ledzpl/protosrv/internal/config"
	"github.com/ledzpl/protosrv/internal/echo"
	"github.com/ledzpl/protosrv/internal/kv"
	"github.com/ledzpl/protosrv/internal/means"
	"github.com/ledzpl/protosrv/internal/pool"
	"github.com/ledzpl/protosrv/internal/prime"
	"github.com/ledzpl/protosrv/pkg/netserver"
)

// deps is what a protocol constructor may draw on.
type deps struct {
	cfg    config.Config
	pool   *pool.Pool
	logger *log.Logger
}

type tcpConstructor func(d deps) netserver.Handler

type udpConstructor func(ctx context.Context, d deps) (netserver.PacketHandler, error)

var tcpProtocols = map[string]tcpConstructor{
	"smoketest": func(d deps) netserver.Handler {
		return echo.NewHandler(d.logger)
	},
	"meanstoanend": func(d deps) netserver.Handler {
		return means.NewHandler(d.logger, 0)
	},
	"primetime": func(d deps) netserver.Handler {
		return prime.NewHandler(d.logger, 0, d.cfg.MaxLineLength)
	},
	"budgetchat": newChatHandler,
}

var udpProtocols = map[string]udpConstructor{
	"unusualdatabaseprogram": newKVHandler,
}

func newChatHandler(d deps) netserver.Handler {
	opts := []chat.Option{
		chat.WithLogger(d.logger),
		chat.WithMaxLineLength(d.cfg.MaxLineLength),
	}
	if d.cfg.WriterLane == config.LanePool {
		p := d.pool
		opts = append(opts, chat.WithLane(func(task func()) error { return p.Submit(task) }))
	}
	return chat.NewHandler(opts...)
}

func newKVHandler(ctx context.Context, d deps) (netserver.PacketHandler, error) {
	if d.cfg.RedisAddr == "" {
		return kv.NewHandler(kv.NewMemoryStore(), d.logger), nil
	}

	store, err := kv.DialRedis(ctx, d.cfg.RedisAddr, d.cfg.RedisKey)
	if err != nil {
		return nil, err
	}
	d.logger.Printf("kv: connected to redis at %s (hash %s)", d.cfg.RedisAddr, d.cfg.RedisKey)
	return kv.NewHandler(store, d.logger), nil
}

// Protocols lists the registered protocol names per transport.
func Protocols(transport string) []string {
	var names []string
	switch transport {
	case config.TransportTCP:
		for name := range tcpProtocols {
			names = append(names, name)
		}
	case config.TransportUDP:
		for name := range udpProtocols {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
