package await

// Race polls a and b on the calling goroutine until one completes and
// returns its index. a is polled first and wins when both are ready.
func Race(a, b Future) int {
	w := NewWaker()
	defer w.finish()
	for {
		if a.Poll(w) {
			return 0
		}
		if b.Poll(w) {
			return 1
		}
		<-w.ch
	}
}

