package storagenode

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/wire"
)

// Server listens for one connection per request (matching the wire
// protocol's one-frame-request/one-frame-response convention) and dispatches
// each to a Node. Shutdown is context-driven: canceling ctx and closing the
// listener together stop the accept loop promptly, instead of the legacy
// pattern of checking a running bool that only took effect on the next
// iteration.
type Server struct {
	node     *Node
	listener net.Listener
	limiter  *rate.Limiter
	counters *metrics.Counters
	log      *logrus.Entry
}

// NewServer binds addr and wraps node. acceptsPerSecond/burst throttle the
// rate new connections are accepted at, guarding the node against a thundering
// herd of reconnecting clients; 0 disables throttling. counters may be nil.
func NewServer(node *Node, addr string, acceptsPerSecond float64, burst int, counters *metrics.Counters, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if acceptsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(acceptsPerSecond), burst)
	}
	return &Server{node: node, listener: ln, limiter: limiter, counters: counters, log: log}, nil
}

// Addr returns the address the server is actually bound to (useful when
// the port in addr was 0).
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve runs the accept loop until ctx is canceled or the listener is
// closed, whichever happens first.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				_ = conn.Close()
				continue
			}
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener directly, for callers not using Serve's ctx.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := wire.ReadRequest(conn)
	if err != nil {
		_ = wire.WriteResponse(conn, wire.ErrorResponse(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		_ = wire.WriteResponse(conn, wire.ErrorResponse(err.Error()))
		return
	}

	resp := s.node.Handle(req)
	if s.counters != nil {
		outcome := "error"
		if resp.Success {
			outcome = "ok"
		}
		s.counters.Requests.WithLabelValues(req.Operation, outcome).Inc()
	}
	if err := wire.WriteResponse(conn, resp); err != nil {
		s.log.WithError(err).Debug("write response failed")
	}
}
