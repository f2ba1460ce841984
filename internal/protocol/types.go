package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	KindSize          = 4
	CorrelationIDSize = 16
	HeaderSize        = KindSize + CorrelationIDSize
)

// Kind is the closed enumeration of envelope discriminants.
type Kind uint32

const (
	KindMultiplyRequest  Kind = 1
	KindMultiplyResponse Kind = 2
)

// Valid reports whether k is a recognized discriminant.
func (k Kind) Valid() bool {
	switch k {
	case KindMultiplyRequest, KindMultiplyResponse:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindMultiplyRequest:
		return "multiply.request"
	case KindMultiplyResponse:
		return "multiply.response"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Envelope is one decoded wire message with its payload still serialized.
type Envelope struct {
	Kind          Kind
	CorrelationID uuid.UUID
	Payload       []byte
}
