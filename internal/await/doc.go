// Package await is a minimal cooperative suspension layer.
//
// A Future is polled with a Waker. Poll returns true when ready; otherwise
// the future has handed the waker to whatever will fire it later and returns
// false. Race is the only executor: it drives two futures on the calling
// goroutine until one completes.
//
// Two futures are provided:
// - EmptyCondition completes when a shared table has no entries
// - Deadline completes after a fixed duration, fired by a Timer worker
//
// Contract:
// - one task per WakerSlot; a second live waker panics
// - a waker fires its task at most once per registration
package await
