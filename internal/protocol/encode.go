package protocol

import (
	"encoding/binary"
	"encoding/json"

	"github.com/google/uuid"
)

// Encode writes kind, id and the json form of payload into one envelope.
func Encode(id uuid.UUID, kind Kind, payload any) ([]byte, error) {
	if !kind.Valid() {
		return nil, &EncodeError{Kind: kind, Err: ErrUnrecognizedKind}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &EncodeError{Kind: kind, Err: err}
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:KindSize], uint32(kind))
	copy(buf[KindSize:HeaderSize], id[:])
	return append(buf, body...), nil
}

// EncodeMessage encodes msg under its own kind.
func EncodeMessage(id uuid.UUID, msg Message) ([]byte, error) {
	return Encode(id, msg.Kind(), msg)
}
