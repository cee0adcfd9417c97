package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-kvstore/internal/wire"
)

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	s := newClusterState()
	s.descriptors["a"] = wire.NodeDescriptor{NodeID: "a", Host: "h", Port: 1}
	s.ring.AddNode("a")
	s.computeReplicaSets()

	clone := s.clone()
	clone.descriptors["b"] = wire.NodeDescriptor{NodeID: "b", Host: "h", Port: 2}
	clone.ring.AddNode("b")

	assert.Len(t, s.descriptors, 1)
	assert.Equal(t, 1, s.ring.NodeCount())
	assert.Len(t, clone.descriptors, 2)
	assert.Equal(t, 2, clone.ring.NodeCount())
}

func TestComputeReplicaSetsAssignsSuccessor(t *testing.T) {
	s := newClusterState()
	s.descriptors["a"] = wire.NodeDescriptor{NodeID: "a", Host: "h", Port: 1}
	s.descriptors["b"] = wire.NodeDescriptor{NodeID: "b", Host: "h", Port: 2}
	s.ring.AddNode("a")
	s.ring.AddNode("b")
	s.computeReplicaSets()

	require.Contains(t, s.replicas, "a")
	require.Contains(t, s.replicas, "b")
	// With two nodes, each node's one replica must be the other node.
	if len(s.replicas["a"]) > 0 {
		assert.Equal(t, "b", s.replicas["a"][0].NodeID)
	}
	if len(s.replicas["b"]) > 0 {
		assert.Equal(t, "a", s.replicas["b"][0].NodeID)
	}
}

func TestComputeReplicaSetsEmptyWithSingleNode(t *testing.T) {
	s := newClusterState()
	s.descriptors["a"] = wire.NodeDescriptor{NodeID: "a", Host: "h", Port: 1}
	s.ring.AddNode("a")
	s.computeReplicaSets()

	assert.Empty(t, s.replicas["a"])
}

func TestSameReplicaSet(t *testing.T) {
	a := []wire.NodeDescriptor{{NodeID: "x"}, {NodeID: "y"}}
	b := []wire.NodeDescriptor{{NodeID: "x"}, {NodeID: "y"}}
	c := []wire.NodeDescriptor{{NodeID: "y"}, {NodeID: "x"}}

	assert.True(t, sameReplicaSet(a, b))
	assert.False(t, sameReplicaSet(a, c))
	assert.False(t, sameReplicaSet(a, nil))
}
