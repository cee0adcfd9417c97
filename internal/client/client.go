// Package client provides a Go SDK for talking to the distributed KV store.
//
// Big idea:
//
// Instead of writing raw TCP frames everywhere,
// we wrap them inside a clean Go API.
//
// So instead of:
//
//	wire.WriteRequest(conn, &wire.Request{...})
//	wire.ReadResponse(conn)
//
// Users can simply call:
//
//	client.Set(ctx, "key", "value", false)
//	client.Get(ctx, "key")
//
// This is called a "client library" or "SDK".
//
// It hides:
//   - raw socket details
//   - length-prefixed JSON framing
//   - error handling
//
// And exposes a clean Go interface.
package client

import (
	"context"
	"net"
	"time"

	"distributed-kvstore/internal/wire"
)

// defaultTimeout protects us from hanging forever on a single request.
const defaultTimeout = 10 * time.Second

// Client talks to ONE coordinator (or, for direct testing, one node).
//
// Important:
//
// This client talks to a single address over one connection per request.
// It does not implement any distributed logic itself — routing, failover,
// and replication all happen server-side. The client is a thin,
// one-shot request/response wrapper. Per spec, a transport failure and "no
// such key" are indistinguishable to a caller: both come back as
// {success:false, value:nil}, never a Go error.
type Client struct {
	addr    string
	timeout time.Duration
	dial    func(network, addr string) (net.Conn, error)
}

// New creates a Client pointed at addr ("host:port"). timeout protects every
// call from hanging forever; 0 selects defaultTimeout.
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{addr: addr, timeout: timeout, dial: net.Dial}
}

// Set stores value under key. sync marks this as an internally-originated
// replica apply — client callers should always pass false.
func (c *Client) Set(ctx context.Context, key string, value any, sync bool) *wire.Response {
	return c.do(ctx, &wire.Request{Operation: wire.OpSet, Key: key, Value: value, Sync: sync})
}

// Get retrieves the value stored under key.
func (c *Client) Get(ctx context.Context, key string) *wire.Response {
	return c.do(ctx, &wire.Request{Operation: wire.OpGet, Key: key})
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) *wire.Response {
	return c.do(ctx, &wire.Request{Operation: wire.OpDelete, Key: key})
}

// Health reports cluster or node health, depending on which address this
// client was built against.
func (c *Client) Health(ctx context.Context) *wire.Response {
	return c.do(ctx, &wire.Request{Operation: wire.OpHealth})
}

// Register announces a storage node to a coordinator.
func (c *Client) Register(ctx context.Context, nodeID, host string, port int) *wire.Response {
	return c.do(ctx, &wire.Request{Operation: wire.OpRegister, NodeID: nodeID, Host: host, Port: port})
}

// do opens one connection, writes req as a single length-prefixed frame,
// and reads back exactly one response frame. No exception escapes this
// call: a dial failure, a write failure, or a malformed/missing response
// all collapse into the same {success:false, value:nil} shape a caller
// would get for "no such key" — the client cannot distinguish transport
// failure from semantic failure, by design (spec §7).
func (c *Client) do(ctx context.Context, req *wire.Request) *wire.Response {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dial := c.dial
	if dial == nil {
		dial = net.Dial
	}
	conn, err := dial("tcp", c.addr)
	if err != nil {
		return &wire.Response{Success: false}
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return &wire.Response{Success: false}
	}
	if err := wire.WriteRequest(conn, req); err != nil {
		return &wire.Response{Success: false}
	}
	resp, err := wire.ReadResponse(conn)
	if err != nil {
		return &wire.Response{Success: false}
	}
	return resp
}
