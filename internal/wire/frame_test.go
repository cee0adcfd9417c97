package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := &Request{Operation: OpSet, Key: "user:1", Value: map[string]any{"name": "Alice", "age": 30.0}}

	require.NoError(t, WriteRequest(&buf, req))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, Unmarshal(got, &decoded))
	assert.Equal(t, req.Operation, decoded.Operation)
	assert.Equal(t, req.Key, decoded.Key)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], MaxFrameSize+1)
	buf.Write(lenBuf[:])

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestRequestValidateRequiresOperation(t *testing.T) {
	req := &Request{}
	assert.Error(t, req.Validate())

	req.Operation = OpHealth
	assert.NoError(t, req.Validate())
}

func TestNodeDescriptorAddr(t *testing.T) {
	d := NodeDescriptor{NodeID: "node_0", Host: "localhost", Port: 6000}
	assert.Equal(t, "localhost:6000", d.Addr())
}
