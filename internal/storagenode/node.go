// Package storagenode implements the storage-node role: it owns a shard of
// the keyspace, serves SET/GET/DELETE/HEALTH, and — when acting as a
// primary — replicates writes to its configured replicas.
package storagenode

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"distributed-kvstore/internal/wire"
)

// Config describes one node's identity and standing replica role.
type Config struct {
	NodeID string
	Host   string
	Port   int
	// ReplicaOf, when set, makes this node a standing replica: it never
	// forwards writes regardless of the inbound sync flag.
	ReplicaOf *wire.NodeDescriptor
}

func (c Config) Descriptor() wire.NodeDescriptor {
	return wire.NodeDescriptor{NodeID: c.NodeID, Host: c.Host, Port: c.Port}
}

// Node is one storage node: the in-memory store plus replication fan-out.
type Node struct {
	cfg        Config
	store      *Store
	replicator *replicator
	log        *logrus.Entry

	replicasMu sync.RWMutex
	replicas   []wire.NodeDescriptor
}

// New creates a Node ready to serve requests.
func New(cfg Config, log *logrus.Entry) *Node {
	return &Node{
		cfg:        cfg,
		store:      NewStore(),
		replicator: newReplicator(log),
		log:        log,
	}
}

// Close stops the node's replication workers.
func (n *Node) Close() {
	n.replicator.Close()
}

// SetReplicas installs the replica set this node forwards writes to when
// acting as primary. Pushed at runtime by the coordinator's
// CONFIGURE_REPLICAS operation (see internal/coordinator), derived from the
// ring's successor-of relation instead of requiring out-of-band wiring.
func (n *Node) SetReplicas(replicas []wire.NodeDescriptor) {
	n.replicasMu.Lock()
	defer n.replicasMu.Unlock()
	n.replicas = replicas
}

func (n *Node) replicaSnapshot() []wire.NodeDescriptor {
	n.replicasMu.RLock()
	defer n.replicasMu.RUnlock()
	out := make([]wire.NodeDescriptor, len(n.replicas))
	copy(out, n.replicas)
	return out
}

// actingAsPrimary reports whether req should be replicated onward: it
// carries no sync flag (so it originated with a client/coordinator, not a
// replica-apply), and this node isn't configured as a standing replica.
func (n *Node) actingAsPrimary(req *wire.Request) bool {
	return !req.Sync && n.cfg.ReplicaOf == nil
}

// Handle dispatches one decoded request to the matching operation and
// returns the response to write back.
func (n *Node) Handle(req *wire.Request) *wire.Response {
	switch req.Operation {
	case wire.OpSet:
		return n.handleSet(req)
	case wire.OpGet:
		return n.handleGet(req)
	case wire.OpDelete:
		return n.handleDelete(req)
	case wire.OpHealth:
		return n.handleHealth()
	case wire.OpConfigureReplicas:
		return n.handleConfigureReplicas(req)
	default:
		return wire.ErrorResponse(fmt.Sprintf("Unknown operation: %s", req.Operation))
	}
}

func (n *Node) handleSet(req *wire.Request) *wire.Response {
	primary := n.actingAsPrimary(req)
	n.store.Put(req.Key, req.Value, func(Record) {
		if primary {
			n.fanOut(req.Key, wire.Request{Operation: wire.OpSet, Key: req.Key, Value: req.Value, Sync: true})
		}
	})
	return &wire.Response{Success: true, Operation: wire.OpSet}
}

func (n *Node) handleGet(req *wire.Request) *wire.Response {
	value, _ := n.store.Get(req.Key)
	// success mirrors whether the stored value is non-nil, not key presence: a
	// key explicitly SET to null is indistinguishable on GET from a key
	// that was never set (matches original_source/kv_node.py's
	// `success = result is not None`).
	return &wire.Response{Success: value != nil, Value: value}
}

func (n *Node) handleDelete(req *wire.Request) *wire.Response {
	primary := n.actingAsPrimary(req)
	existed := n.store.Delete(req.Key, func(existed bool) {
		if existed && primary {
			n.fanOut(req.Key, wire.Request{Operation: wire.OpDelete, Key: req.Key, Sync: true})
		}
	})
	if !existed {
		return &wire.Response{Success: false}
	}
	return &wire.Response{Success: true, Operation: wire.OpDelete}
}

func (n *Node) handleHealth() *wire.Response {
	return &wire.Response{Status: "healthy", NodeID: n.cfg.NodeID, DataSize: n.store.Size()}
}

func (n *Node) handleConfigureReplicas(req *wire.Request) *wire.Response {
	n.SetReplicas(req.Replicas)
	return &wire.Response{Success: true}
}

// fanOut enqueues req (already marked sync=true by the caller) once per
// configured replica, onto the ordered queue of key's shard.
func (n *Node) fanOut(key string, req wire.Request) {
	for _, replica := range n.replicaSnapshot() {
		n.replicator.enqueue(key, replica, req)
	}
}

// DebugSnapshot implements metrics.DebugProvider.
func (n *Node) DebugSnapshot() map[string]any {
	return map[string]any{
		"node_id":       n.cfg.NodeID,
		"data_size":     n.store.Size(),
		"replica_count": len(n.replicaSnapshot()),
	}
}
