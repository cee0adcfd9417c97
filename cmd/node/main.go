// cmd/node is the main entrypoint for a storage node.
//
// Example — three-node cluster registering with a coordinator:
//
//	./node --id node1 --addr :6001 --metrics-addr :9101 --coordinator :5000
//	./node --id node2 --addr :6002 --metrics-addr :9102 --coordinator :5000
//	./node --id node3 --addr :6003 --metrics-addr :9103 --coordinator :5000
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"distributed-kvstore/internal/client"
	"distributed-kvstore/internal/logging"
	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/storagenode"
)

func main() {
	nodeID := flag.String("id", "node1", "Unique node identifier")
	addr := flag.String("addr", ":6001", "Data-plane listen address (host:port)")
	metricsAddr := flag.String("metrics-addr", ":9101", "Prometheus/debug sidecar listen address")
	coordinatorAddr := flag.String("coordinator", "", "Coordinator address to REGISTER with (empty skips registration)")
	acceptsPerSecond := flag.Float64("accept-rate", 0, "Max accepted connections/sec (0 disables throttling)")
	acceptBurst := flag.Int("accept-burst", 10, "Burst size for --accept-rate")
	flag.Parse()

	logger := logging.New("node").WithField("node_id", *nodeID)

	host, portStr, err := net.SplitHostPort(*addr)
	if err != nil || host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("invalid --addr %q: %v", *addr, err)
	}

	node := storagenode.New(storagenode.Config{NodeID: *nodeID, Host: host, Port: port}, logger)
	defer node.Close()

	counters, reg := metrics.NewCounters("node")

	srv, err := storagenode.NewServer(node, *addr, *acceptsPerSecond, *acceptBurst, counters, logger)
	if err != nil {
		log.Fatalf("listen on %s: %v", *addr, err)
	}

	sidecar := metrics.NewServer(*metricsAddr, reg, node)
	go func() {
		if err := sidecar.ListenAndServe(); err != nil {
			logger.WithError(err).Error("metrics sidecar exited")
		}
	}()

	if *coordinatorAddr != "" {
		c := client.New(*coordinatorAddr, 10*time.Second)
		if resp := c.Register(context.Background(), *nodeID, host, port); !resp.Success {
			logger.WithField("error", resp.Error).Warn("REGISTER with coordinator failed")
		} else {
			logger.WithField("coordinator", *coordinatorAddr).Info("registered")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	logger.WithField("addr", *addr).Info("node listening")
	if err := srv.Serve(ctx); err != nil {
		logger.WithError(err).Error("serve exited")
	}
	_ = sidecar.Shutdown()
}
