package storagenode

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-kvstore/internal/logging"
	"distributed-kvstore/internal/wire"
)

var assertErr = errors.New("dial refused in test")

func testNode(t *testing.T) *Node {
	t.Helper()
	n := New(Config{NodeID: "n1", Host: "127.0.0.1", Port: 9001}, logging.New("test"))
	t.Cleanup(n.Close)
	return n
}

func TestHandleSetThenGet(t *testing.T) {
	n := testNode(t)

	resp := n.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})
	assert.True(t, resp.Success)

	resp = n.Handle(&wire.Request{Operation: wire.OpGet, Key: "a"})
	assert.True(t, resp.Success)
	assert.Equal(t, "1", resp.Value)
}

func TestHandleGetMissingKeyFails(t *testing.T) {
	n := testNode(t)
	resp := n.Handle(&wire.Request{Operation: wire.OpGet, Key: "missing"})
	assert.False(t, resp.Success)
}

// TestHandleGetOfExplicitNullFails covers spec's success formula literally:
// success reflects whether the stored value is null, not whether the key
// was ever SET. A key explicitly SET to JSON null must GET back
// {success:false, value:nil}, indistinguishable from a missing key.
func TestHandleGetOfExplicitNullFails(t *testing.T) {
	n := testNode(t)
	resp := n.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: nil})
	require.True(t, resp.Success)

	resp = n.Handle(&wire.Request{Operation: wire.OpGet, Key: "a"})
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Value)
}

func TestHandleDeleteReportsExistence(t *testing.T) {
	n := testNode(t)
	n.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})

	resp := n.Handle(&wire.Request{Operation: wire.OpDelete, Key: "a"})
	assert.True(t, resp.Success)

	resp = n.Handle(&wire.Request{Operation: wire.OpDelete, Key: "a"})
	assert.False(t, resp.Success)
}

func TestHandleHealthReportsDataSize(t *testing.T) {
	n := testNode(t)
	n.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})
	n.Handle(&wire.Request{Operation: wire.OpSet, Key: "b", Value: "2"})

	resp := n.Handle(&wire.Request{Operation: wire.OpHealth})
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "n1", resp.NodeID)
	assert.Equal(t, 2, resp.DataSize)
}

func TestHandleUnknownOperation(t *testing.T) {
	n := testNode(t)
	resp := n.Handle(&wire.Request{Operation: "BOGUS"})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestSyncedWriteDoesNotReReplicate(t *testing.T) {
	n := testNode(t)
	n.SetReplicas([]wire.NodeDescriptor{{NodeID: "r1", Host: "127.0.0.1", Port: 1}})

	// Replaced dial with one that fails fast and records whether it was
	// ever invoked; a sync=true write (replica applying a primary's
	// write) must never itself fan out again.
	called := make(chan struct{}, 1)
	n.replicator.dial = func(addr string) (net.Conn, error) {
		select {
		case called <- struct{}{}:
		default:
		}
		return nil, assertErr
	}

	resp := n.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1", Sync: true})
	require.True(t, resp.Success)

	select {
	case <-called:
		t.Fatal("sync write should not have triggered replication fan-out")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConfigureReplicasInstallsReplicaSet(t *testing.T) {
	n := testNode(t)
	replicas := []wire.NodeDescriptor{{NodeID: "r1", Host: "127.0.0.1", Port: 9002}}

	resp := n.Handle(&wire.Request{Operation: wire.OpConfigureReplicas, Replicas: replicas})
	assert.True(t, resp.Success)
	assert.Equal(t, replicas, n.replicaSnapshot())
}

func TestReplicaOfNodeNeverReplicatesEvenUnsynced(t *testing.T) {
	replicaOf := wire.NodeDescriptor{NodeID: "primary"}
	n := New(Config{NodeID: "n2", ReplicaOf: &replicaOf}, logging.New("test"))
	defer n.Close()
	n.SetReplicas([]wire.NodeDescriptor{{NodeID: "r2", Host: "127.0.0.1", Port: 1}})

	called := make(chan struct{}, 1)
	n.replicator.dial = func(addr string) (net.Conn, error) {
		select {
		case called <- struct{}{}:
		default:
		}
		return nil, assertErr
	}

	resp := n.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})
	require.True(t, resp.Success)

	select {
	case <-called:
		t.Fatal("a standing replica must never forward writes further")
	case <-time.After(100 * time.Millisecond):
	}
}
