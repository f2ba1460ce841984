// Package requester keeps batches of multiply requests in flight, matches
// responses by correlation id and resends whatever is still pending when a
// batch window closes.
//
// Each cycle races two futures on one goroutine: the pending table becoming
// empty, and a fixed deadline. If the table drains first the next batch is
// all fresh requests. If the deadline fires first, every pending entry is
// replayed (same id, same payload) ahead of the fresh ones.
//
// Responses are consumed on a separate goroutine. The receive path removes
// matched entries and wakes the cycle when it removes the last one.
package requester
