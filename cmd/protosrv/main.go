package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/ledzpl/protosrv/internal/app"
	"github.com/ledzpl/protosrv/internal/config"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Parse(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr error
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		runErr = app.Run(ctx, cfg, logger)
	}()

	// The operation cancels the serve context; the accept loop observes it
	// within one poll interval, then the worker pool drains.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"protosrv": func(ctx context.Context) error {
				logger.Println("shutdown requested")
				cancel()
				select {
				case <-stopped:
					if runErr != nil && !errors.Is(runErr, context.Canceled) {
						return runErr
					}
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	)

	select {
	case code := <-wait:
		logger.Printf("exited with code %d", code)
		os.Exit(code)
	case <-stopped:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Fatalf("server stopped with error: %v", runErr)
		}
	}
}
