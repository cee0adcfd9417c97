package coordinator

import (
	"distributed-kvstore/internal/ring"
	"distributed-kvstore/internal/wire"
)

// ReplicationFactor is the number of ring successors each node replicates
// to. The coordinator derives replica topology from the ring itself (see
// computeReplicaSets) rather than requiring it wired in by hand.
const ReplicationFactor = 1

// clusterState is an immutable snapshot of cluster membership and routing
// topology. The coordinator never mutates one in place: REGISTER builds a
// new clusterState and atomically swaps it in, so concurrent readers
// always see a fully-formed, self-consistent view without taking a lock.
type clusterState struct {
	descriptors map[string]wire.NodeDescriptor
	ring        *ring.Ring
	// replicas maps each primary node id to the descriptors it should
	// replicate writes to, derived from ring successors.
	replicas map[string][]wire.NodeDescriptor
}

func newClusterState() *clusterState {
	return &clusterState{
		descriptors: make(map[string]wire.NodeDescriptor),
		ring:        ring.New(ring.DefaultVirtualNodes),
		replicas:    make(map[string][]wire.NodeDescriptor),
	}
}

// clone returns a deep-enough copy for a writer to mutate before publishing.
func (s *clusterState) clone() *clusterState {
	next := &clusterState{
		descriptors: make(map[string]wire.NodeDescriptor, len(s.descriptors)),
		ring:        s.ring.Clone(),
		replicas:    make(map[string][]wire.NodeDescriptor, len(s.replicas)),
	}
	for k, v := range s.descriptors {
		next.descriptors[k] = v
	}
	for k, v := range s.replicas {
		cp := make([]wire.NodeDescriptor, len(v))
		copy(cp, v)
		next.replicas[k] = cp
	}
	return next
}

// computeReplicaSets recomputes, for every known node, its RF immediate ring
// successors. Called after every membership change so replica topology
// always matches current ring structure.
func (s *clusterState) computeReplicaSets() {
	for _, nodeID := range s.ring.Nodes() {
		successors := s.ring.GetNodes(nodeID, ReplicationFactor+1)
		var descs []wire.NodeDescriptor
		for _, sid := range successors {
			if sid == nodeID {
				continue
			}
			if d, ok := s.descriptors[sid]; ok {
				descs = append(descs, d)
			}
			if len(descs) >= ReplicationFactor {
				break
			}
		}
		s.replicas[nodeID] = descs
	}
}

func sameReplicaSet(a, b []wire.NodeDescriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
