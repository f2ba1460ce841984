// Package bus is the fan-out broker.
//
// Requests arrive on a routing ingress as (identity, payload) frame pairs and
// are forwarded verbatim to exactly one publisher from a fixed pool. The
// publisher chosen is the least recently used one; ties go to the lowest
// index. A payload whose send fails is parked on a FIFO retry queue, and the
// dispatcher drains that queue before reading the ingress again.
//
// Payloads are opaque here. The bus never decodes them.
package bus
