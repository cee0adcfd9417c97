// Package wire implements the length-prefixed JSON framing used by every
// link in the cluster: client→coordinator, coordinator→node, and
// node→replica. Each frame is a 4-byte big-endian length prefix followed by
// exactly that many bytes of JSON.
//
// The legacy protocol this replaces terminated a frame by closing the
// socket and had the receiver read until its fixed buffer filled or EOF —
// workable, but it silently truncated oversized requests into a parse
// failure instead of a clear protocol error. Explicit framing was the
// improvement flagged for any reimplementation; since there are no
// external legacy clients to stay wire-compatible with here, there's no
// need for a compatibility mode.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// MaxFrameSize is the uniform frame budget across all links (spec's
// "preferred" option: raise both the legacy 1 KiB client limit and the
// 1 MiB node limit to a single 1 MiB ceiling).
const MaxFrameSize = 1 << 20 // 1 MiB

// ErrFrameTooLarge is returned when a peer's declared frame length exceeds
// MaxFrameSize. The caller turns this into a protocol error response.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds %d byte limit", MaxFrameSize)

var json = sonic.ConfigDefault

// Marshal encodes v as JSON using the fast sonic codec.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON into v using the fast sonic codec.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ReadFrame reads one length-prefixed frame from r, rejecting frames over
// MaxFrameSize before allocating a buffer for them.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes payload to w prefixed with its big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadRequest reads and decodes one Request frame from r.
func ReadRequest(r io.Reader) (*Request, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// WriteResponse encodes and writes resp as one frame to w.
func WriteResponse(w io.Writer, resp *Response) error {
	data, err := Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadResponse reads and decodes one Response frame from r.
func ReadResponse(r io.Reader) (*Response, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// WriteRequest encodes and writes req as one frame to w.
func WriteRequest(w io.Writer, req *Request) error {
	data, err := Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return WriteFrame(w, data)
}
