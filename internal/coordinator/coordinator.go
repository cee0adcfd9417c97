// Package coordinator implements the routing front door: it accepts
// client requests, looks up the responsible storage node(s) via the
// consistent-hash ring, forwards with a single fallback on failure, and
// tracks cluster membership through REGISTER.
package coordinator

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"distributed-kvstore/internal/wire"
)

// forwardTimeout bounds one coordinator→node attempt (connect+send+recv).
const forwardTimeout = 5 * time.Second

// Coordinator routes client requests to storage nodes and tracks membership.
//
// [REDESIGNED] Shared state lives behind an atomic.Pointer rather than a
// sync.RWMutex guarding the descriptor map and ring directly: every data-op
// request does one atomic load and then works lock-free against that
// snapshot, so concurrent REGISTERs never block readers. REGISTER builds a
// new clusterState under writerMu (serializing writers only) and swaps the
// pointer — "epoch-versioned snapshot, readers copy-reference, writers
// replace." REGISTER is the only membership change: there is no operation
// that unregisters a node or removes its ring entries.
type Coordinator struct {
	state atomic.Pointer[clusterState]

	writerMu sync.Mutex

	dial func(addr string) (net.Conn, error)
	log  *logrus.Entry
}

// New creates an empty Coordinator.
func New(log *logrus.Entry) *Coordinator {
	c := &Coordinator{
		dial: func(addr string) (net.Conn, error) { return net.DialTimeout("tcp", addr, forwardTimeout) },
		log:  log,
	}
	c.state.Store(newClusterState())
	return c
}

func (c *Coordinator) snapshot() *clusterState {
	return c.state.Load()
}

// Register adds or re-registers a node, idempotently, and recomputes
// replica topology, pushing CONFIGURE_REPLICAS to any node whose replica
// set changed as a result.
func (c *Coordinator) Register(desc wire.NodeDescriptor) {
	c.writerMu.Lock()
	prev := c.snapshot()
	next := prev.clone()
	next.descriptors[desc.NodeID] = desc
	next.ring.AddNode(desc.NodeID)
	next.computeReplicaSets()
	c.state.Store(next)
	c.writerMu.Unlock()

	c.pushChangedReplicaConfigs(prev, next)
}

// pushChangedReplicaConfigs sends CONFIGURE_REPLICAS to every node whose
// computed replica set differs between the snapshots immediately before and
// after the membership change. Best-effort: a node that can't be reached
// right now keeps its old replica set; a later membership change resends
// only if that node's computed replica set changes again.
func (c *Coordinator) pushChangedReplicaConfigs(prev, next *clusterState) {
	for nodeID, replicas := range next.replicas {
		if sameReplicaSet(prev.replicas[nodeID], replicas) {
			continue
		}
		desc, ok := next.descriptors[nodeID]
		if !ok {
			continue
		}
		go c.sendConfigureReplicas(desc, replicas)
	}
}

func (c *Coordinator) sendConfigureReplicas(desc wire.NodeDescriptor, replicas []wire.NodeDescriptor) {
	conn, err := c.dial(desc.Addr())
	if err != nil {
		c.log.WithError(err).WithField("node_id", desc.NodeID).Warn("CONFIGURE_REPLICAS dial failed")
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(forwardTimeout))

	req := &wire.Request{Operation: wire.OpConfigureReplicas, Replicas: replicas}
	if err := wire.WriteRequest(conn, req); err != nil {
		c.log.WithError(err).WithField("node_id", desc.NodeID).Warn("CONFIGURE_REPLICAS send failed")
		return
	}
	_, _ = wire.ReadResponse(conn)
}

// Handle dispatches one client request.
func (c *Coordinator) Handle(req *wire.Request) *wire.Response {
	switch req.Operation {
	case wire.OpRegister:
		return c.handleRegister(req)
	case wire.OpHealth:
		return c.handleHealth()
	case wire.OpSet, wire.OpGet, wire.OpDelete:
		return c.forward(req)
	default:
		return wire.ErrorResponse(fmt.Sprintf("Unknown operation: %s", req.Operation))
	}
}

func (c *Coordinator) handleRegister(req *wire.Request) *wire.Response {
	if req.NodeID == "" || req.Host == "" || req.Port == 0 {
		return wire.ErrorResponse("REGISTER requires node_id, host, and port")
	}
	c.Register(wire.NodeDescriptor{NodeID: req.NodeID, Host: req.Host, Port: req.Port})
	state := c.snapshot()
	return &wire.Response{
		Success:   true,
		Status:    "registered",
		NodeCount: state.ring.NodeCount(),
		Message:   fmt.Sprintf("Node %s registered", req.NodeID),
	}
}

func (c *Coordinator) handleHealth() *wire.Response {
	state := c.snapshot()
	return &wire.Response{Status: "healthy", NodeCount: state.ring.NodeCount(), Nodes: state.ring.Nodes()}
}

// forward routes req to the node(s) responsible for its key, trying each in
// ring order until one succeeds. A descriptor missing from the map (stale
// ring entry) is skipped silently rather than counted as a failed attempt.
func (c *Coordinator) forward(req *wire.Request) *wire.Response {
	state := c.snapshot()
	candidates := state.ring.GetNodes(req.Key, 2)
	if len(candidates) == 0 {
		return wire.ErrorResponse("No available nodes")
	}

	var lastErr error
	for _, nodeID := range candidates {
		desc, ok := state.descriptors[nodeID]
		if !ok {
			continue
		}
		resp, err := c.forwardOnce(desc, req)
		if err == nil {
			return resp
		}
		lastErr = err
	}
	if lastErr == nil {
		return wire.ErrorResponse("No available nodes")
	}
	return wire.ErrorResponse(fmt.Sprintf("All nodes failed. Last error: %v", lastErr))
}

// DebugSnapshot implements metrics.DebugProvider.
func (c *Coordinator) DebugSnapshot() map[string]any {
	state := c.snapshot()
	return map[string]any{
		"node_count": state.ring.NodeCount(),
		"nodes":      state.ring.Nodes(),
	}
}

func (c *Coordinator) forwardOnce(desc wire.NodeDescriptor, req *wire.Request) (*wire.Response, error) {
	conn, err := c.dial(desc.Addr())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(forwardTimeout))
	if err := wire.WriteRequest(conn, req); err != nil {
		return nil, err
	}
	return wire.ReadResponse(conn)
}
