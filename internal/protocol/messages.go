package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is a payload type that knows its own envelope kind.
type Message interface {
	Kind() Kind
}

// MultiplyRequest asks a responder for Value*Multiplier.
type MultiplyRequest struct {
	Value      int64 `json:"value"`
	Multiplier int64 `json:"multiplier"`
}

func (MultiplyRequest) Kind() Kind { return KindMultiplyRequest }

// Product is the result a correct responder must return.
func (r MultiplyRequest) Product() int64 {
	return r.Value * r.Multiplier
}

func (r *MultiplyRequest) UnmarshalJSON(b []byte) error {
	var aux struct {
		Value      *int64 `json:"value"`
		Multiplier *int64 `json:"multiplier"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Value == nil {
		return missingField("value")
	}
	if aux.Multiplier == nil {
		return missingField("multiplier")
	}
	r.Value = *aux.Value
	r.Multiplier = *aux.Multiplier
	return nil
}

// MultiplyResponse carries the responder's computed product.
type MultiplyResponse struct {
	Result int64 `json:"result"`
}

func (MultiplyResponse) Kind() Kind { return KindMultiplyResponse }

func (r *MultiplyResponse) UnmarshalJSON(b []byte) error {
	var aux struct {
		Result *int64 `json:"result"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Result == nil {
		return missingField("result")
	}
	r.Result = *aux.Result
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}
