package wire

import (
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Operation names, shared verbatim across every link in the cluster.
const (
	OpSet               = "SET"
	OpGet               = "GET"
	OpDelete            = "DELETE"
	OpHealth            = "HEALTH"
	OpRegister          = "REGISTER"
	OpConfigureReplicas = "CONFIGURE_REPLICAS"
)

// NodeDescriptor identifies one storage node: its id and where to reach it.
type NodeDescriptor struct {
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// Addr returns the descriptor's dial address in host:port form.
func (d NodeDescriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Request is the single wire struct carried by every operation. Unused
// fields are simply omitted on the wire (omitempty), matching spec.md's
// per-operation schema.
type Request struct {
	Operation string           `json:"operation" validate:"required"`
	Key       string           `json:"key,omitempty"`
	Value     any              `json:"value,omitempty"`
	Sync      bool             `json:"sync,omitempty"`
	NodeID    string           `json:"node_id,omitempty"`
	Host      string           `json:"host,omitempty"`
	Port      int              `json:"port,omitempty"`
	Replicas  []NodeDescriptor `json:"replicas,omitempty"`
}

// Response is the single wire struct returned by every operation.
type Response struct {
	Success   bool     `json:"success"`
	Operation string   `json:"operation,omitempty"`
	Value     any      `json:"value,omitempty"`
	Error     string   `json:"error,omitempty"`
	Status    string   `json:"status,omitempty"`
	NodeCount int      `json:"node_count,omitempty"`
	Nodes     []string `json:"nodes,omitempty"`
	NodeID    string   `json:"node_id,omitempty"`
	DataSize  int      `json:"data_size,omitempty"`
	Message   string   `json:"message,omitempty"`
}

var validate = validator.New()

// Validate checks the struct-level constraints on a decoded request (just
// "operation is present" today — per-operation field presence, e.g. REGISTER
// needing node_id/host/port, is checked by the handler that owns that
// operation, since the required fields differ per operation and validator
// struct tags can't express that branching cleanly).
func (r *Request) Validate() error {
	return validate.Struct(r)
}

// ErrorResponse builds a failed Response carrying msg.
func ErrorResponse(msg string) *Response {
	return &Response{Success: false, Error: msg}
}
