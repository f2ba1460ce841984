// Package protocol owns the bus wire envelope.
//
// Ownership boundary:
// - kind tag enumeration
// - correlation id framing
// - json payload encode/decode
//
// Layout:
//
//	bytes[0..4]   kind tag, big-endian u32
//	bytes[4..20]  correlation id, big-endian 128-bit
//	bytes[20..]   json payload, no length prefix
//
// The envelope has no length field. It is only safe on a transport that
// preserves message boundaries (zmq, nats, inproc). A byte-stream transport
// must add its own framing.
package protocol
