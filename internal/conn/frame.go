package conn

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame indicates a binary frame whose declared metadata length
// does not fit inside the frame. The frame is dropped, never fatal.
var ErrMalformedFrame = errors.New("malformed binary frame")

// Frame is the binary wire format for non-text payloads:
// [4-byte little-endian metadata length][metadata JSON][raw payload].
type Frame struct {
	Metadata json.RawMessage
	Payload  []byte
}

const frameHeaderSize = 4

// EncodeFrame serializes a frame. A nil metadata block is encoded as an
// empty JSON object so decoders always see valid JSON.
func EncodeFrame(f Frame) []byte {
	meta := f.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}

	buf := make([]byte, frameHeaderSize+len(meta)+len(f.Payload))
	binary.LittleEndian.PutUint32(buf[:frameHeaderSize], uint32(len(meta)))
	copy(buf[frameHeaderSize:], meta)
	copy(buf[frameHeaderSize+len(meta):], f.Payload)
	return buf
}

// NewFrame builds a frame from an arbitrary metadata value.
func NewFrame(metadata any, payload []byte) (Frame, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal frame metadata: %w", err)
	}
	return Frame{Metadata: raw, Payload: payload}, nil
}

// DecodeFrame parses a binary frame. The declared metadata length must
// satisfy metaLen <= len(data)-4, and the metadata bytes must be valid
// JSON; either violation is ErrMalformedFrame. The JSON check is stricter
// than the length bound alone: it keeps undecodable metadata from reaching
// event subscribers.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < frameHeaderSize {
		return Frame{}, fmt.Errorf("%w: frame shorter than header (%d bytes)", ErrMalformedFrame, len(data))
	}

	metaLen := binary.LittleEndian.Uint32(data[:frameHeaderSize])
	if metaLen > uint32(len(data)-frameHeaderSize) {
		return Frame{}, fmt.Errorf("%w: metadata length %d exceeds frame size %d", ErrMalformedFrame, metaLen, len(data))
	}

	meta := data[frameHeaderSize : frameHeaderSize+metaLen]
	if !json.Valid(meta) {
		return Frame{}, fmt.Errorf("%w: metadata is not valid JSON", ErrMalformedFrame)
	}

	return Frame{
		Metadata: json.RawMessage(meta),
		Payload:  data[frameHeaderSize+metaLen:],
	}, nil
}
