// cmd/coordinator is the main entrypoint for the routing coordinator.
//
// Configuration is entirely via flags — no environment variables, no
// config files, no persisted state, matching the wire protocol's own
// no-persistence stance.
//
// Example:
//
//	./coordinator --addr :5000 --metrics-addr :9100
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"distributed-kvstore/internal/coordinator"
	"distributed-kvstore/internal/logging"
	"distributed-kvstore/internal/metrics"
)

func main() {
	addr := flag.String("addr", ":5000", "Client-facing listen address (host:port)")
	metricsAddr := flag.String("metrics-addr", ":9100", "Prometheus/debug sidecar listen address")
	acceptsPerSecond := flag.Float64("accept-rate", 0, "Max accepted connections/sec (0 disables throttling)")
	acceptBurst := flag.Int("accept-burst", 10, "Burst size for --accept-rate")
	flag.Parse()

	logger := logging.New("coordinator")

	coord := coordinator.New(logger)
	counters, reg := metrics.NewCounters("coordinator")

	srv, err := coordinator.NewServer(coord, *addr, *acceptsPerSecond, *acceptBurst, counters, logger)
	if err != nil {
		log.Fatalf("listen on %s: %v", *addr, err)
	}

	sidecar := metrics.NewServer(*metricsAddr, reg, coord)
	go func() {
		if err := sidecar.ListenAndServe(); err != nil {
			logger.WithError(err).Error("metrics sidecar exited")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	logger.WithField("addr", *addr).Info("coordinator listening")
	if err := srv.Serve(ctx); err != nil {
		logger.WithError(err).Error("serve exited")
	}
	_ = sidecar.Shutdown()
}
