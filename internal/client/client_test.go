package client

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distributed-kvstore/internal/wire"
)

func serveOnce(t *testing.T, handler func(req *wire.Request) *wire.Response) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

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
		_ = wire.WriteResponse(conn, handler(req))
	}()
	return ln.Addr().String()
}

func TestClientSet(t *testing.T) {
	addr := serveOnce(t, func(req *wire.Request) *wire.Response {
		assert.Equal(t, wire.OpSet, req.Operation)
		assert.Equal(t, "a", req.Key)
		assert.Equal(t, "v", req.Value)
		return &wire.Response{Success: true}
	})

	c := New(addr, 0)
	resp := c.Set(context.Background(), "a", "v", false)
	assert.True(t, resp.Success)
}

func TestClientGet(t *testing.T) {
	addr := serveOnce(t, func(req *wire.Request) *wire.Response {
		return &wire.Response{Success: true, Value: "hello"}
	})

	c := New(addr, 0)
	resp := c.Get(context.Background(), "a")
	assert.Equal(t, "hello", resp.Value)
}

// TestClientDialFailureYieldsFailedResponse confirms spec §7: a transport
// failure must never escape as a Go error — it collapses into the same
// {success:false, value:nil} shape the caller would see for "no such key".
func TestClientDialFailureYieldsFailedResponse(t *testing.T) {
	c := New("127.0.0.1:1", 0)
	resp := c.Delete(context.Background(), "a")
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Value)
}

func TestClientRegister(t *testing.T) {
	addr := serveOnce(t, func(req *wire.Request) *wire.Response {
		assert.Equal(t, wire.OpRegister, req.Operation)
		assert.Equal(t, "n1", req.NodeID)
		return &wire.Response{Success: true, Status: "registered"}
	})

	c := New(addr, 0)
	resp := c.Register(context.Background(), "n1", "127.0.0.1", 9001)
	assert.Equal(t, "registered", resp.Status)
}
