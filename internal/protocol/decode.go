package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DecodeKind reads the kind tag and returns the remaining bytes.
func DecodeKind(b []byte) (Kind, []byte, error) {
	if len(b) < KindSize {
		return 0, nil, ErrTruncated
	}
	raw := binary.BigEndian.Uint32(b[:KindSize])
	kind := Kind(raw)
	if !kind.Valid() {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnrecognizedKind, raw)
	}
	return kind, b[KindSize:], nil
}

// DecodeCorrelationID consumes the 16 id bytes. Input shorter than that is
// zero-padded; the call never fails.
func DecodeCorrelationID(rest []byte) (uuid.UUID, []byte) {
	var id uuid.UUID
	n := copy(id[:], rest)
	return id, rest[n:]
}

// DecodePayload parses the json payload left after kind and id.
func DecodePayload[T any](rest []byte) (T, error) {
	var out T
	if err := json.Unmarshal(rest, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return out, nil
}

// Decode splits b into an Envelope without parsing the payload.
func Decode(b []byte) (Envelope, error) {
	kind, rest, err := DecodeKind(b)
	if err != nil {
		return Envelope{}, err
	}
	if len(rest) < CorrelationIDSize {
		return Envelope{}, ErrTruncated
	}
	id, payload := DecodeCorrelationID(rest)
	return Envelope{Kind: kind, CorrelationID: id, Payload: payload}, nil
}
