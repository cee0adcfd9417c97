package coordinator

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/wire"
)

// Server is the coordinator's client-facing TCP listener. Shutdown is
// context-driven: canceling ctx and closing the listener together stop the
// accept loop immediately, replacing the legacy running-bool poll.
type Server struct {
	coord    *Coordinator
	listener net.Listener
	limiter  *rate.Limiter
	counters *metrics.Counters
	log      *logrus.Entry
}

// NewServer binds addr and wraps coord. acceptsPerSecond/burst throttle
// accepted connections/sec; 0 disables throttling. counters may be nil.
func NewServer(coord *Coordinator, addr string, acceptsPerSecond float64, burst int, counters *metrics.Counters, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if acceptsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(acceptsPerSecond), burst)
	}
	return &Server{coord: coord, listener: ln, limiter: limiter, counters: counters, log: log}, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

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

	resp := s.coord.Handle(req)
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
