package await

// Table is the read side of a shared collection an EmptyCondition watches.
type Table interface {
	IsEmpty() bool
}

// EmptyCondition completes once table has no entries. Whoever removes the
// last entry must call slot.WakeAndClear.
type EmptyCondition struct {
	table Table
	slot  *WakerSlot
}

func NewEmptyCondition(table Table, slot *WakerSlot) *EmptyCondition {
	return &EmptyCondition{table: table, slot: slot}
}

func (c *EmptyCondition) Poll(w *Waker) bool {
	if c.table.IsEmpty() {
		return true
	}
	c.slot.Register(w)
	// The last entry may have been removed between the check and Register.
	return c.table.IsEmpty()
}
