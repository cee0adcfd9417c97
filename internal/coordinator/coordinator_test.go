package coordinator

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-kvstore/internal/logging"
	"distributed-kvstore/internal/wire"
)

func testCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return New(logging.New("test"))
}

func TestRegisterIsIdempotent(t *testing.T) {
	c := testCoordinator(t)
	desc := wire.NodeDescriptor{NodeID: "n1", Host: "127.0.0.1", Port: 9001}

	c.Register(desc)
	c.Register(desc)

	assert.Equal(t, 1, c.snapshot().ring.NodeCount())
}

func TestHandleRegisterRequiresFields(t *testing.T) {
	c := testCoordinator(t)
	resp := c.Handle(&wire.Request{Operation: wire.OpRegister})
	assert.False(t, resp.Success)
}

func TestHandleRegisterThenHealthReportsNode(t *testing.T) {
	c := testCoordinator(t)
	resp := c.Handle(&wire.Request{Operation: wire.OpRegister, NodeID: "n1", Host: "127.0.0.1", Port: 9001})
	require.True(t, resp.Success)
	assert.Equal(t, "Node n1 registered", resp.Message)

	resp = c.Handle(&wire.Request{Operation: wire.OpHealth})
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.NodeCount)
	assert.Contains(t, resp.Nodes, "n1")
}

func TestForwardWithNoNodesFails(t *testing.T) {
	c := testCoordinator(t)
	resp := c.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "No available nodes")
}

func TestForwardFailsWhenAllNodesUnreachable(t *testing.T) {
	c := testCoordinator(t)
	c.Register(wire.NodeDescriptor{NodeID: "n1", Host: "127.0.0.1", Port: 1})
	c.Register(wire.NodeDescriptor{NodeID: "n2", Host: "127.0.0.1", Port: 2})

	calls := map[string]int{}
	c.dial = func(addr string) (net.Conn, error) {
		calls[addr]++
		if addr == "127.0.0.1:1" {
			return nil, errors.New("connection refused")
		}
		return nil, errors.New("connection refused")
	}

	resp := c.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "All nodes failed")
}

func TestForwardSucceedsOnReachableNode(t *testing.T) {
	c := testCoordinator(t)
	c.Register(wire.NodeDescriptor{NodeID: "n1", Host: "127.0.0.1", Port: 1})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := wire.ReadRequest(conn)
		if err != nil {
			return
		}
		_ = wire.WriteResponse(conn, &wire.Response{Success: true, Operation: req.Operation})
	}()

	c.dial = func(addr string) (net.Conn, error) { return net.Dial("tcp", ln.Addr().String()) }

	resp := c.Handle(&wire.Request{Operation: wire.OpSet, Key: "a", Value: "1"})
	assert.True(t, resp.Success)
}

func TestHandleUnknownOperation(t *testing.T) {
	c := testCoordinator(t)
	resp := c.Handle(&wire.Request{Operation: "BOGUS"})
	assert.False(t, resp.Success)
}
