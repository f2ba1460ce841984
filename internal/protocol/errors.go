package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEncode           = errors.New("protocol: payload encode failed")
	ErrUnrecognizedKind = errors.New("protocol: unrecognized kind")
	ErrMalformedPayload = errors.New("protocol: malformed payload")
	ErrTruncated        = errors.New("protocol: truncated data")
)

// EncodeError reports a payload that could not be serialized for kind.
type EncodeError struct {
	Kind Kind
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("protocol: encode %s: %v", e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	return []error{ErrEncode, e.Err}
}
