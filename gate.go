package lpcmbox

import "sync/atomic"

// Gate enforces single-occupancy admission to a mailbox: at most one
// holder at a time, system wide for all devices sharing the gate. The
// zero value is ready for use with no holder.
//
// Attach gives every device its own Gate by default; inject a shared
// one through DeviceConfig only when several device instances must
// exclude each other.
type Gate struct {
	open atomic.Int32
}

// TryAcquire attempts to become the holder. It never blocks: if the
// gate is already held TryAcquire undoes its tentative claim and
// returns false.
func (g *Gate) TryAcquire() bool {
	if g.open.Add(1) == 1 {
		return true
	}
	g.open.Add(-1)
	return false
}

// Release gives up the holder slot. It must only be called after a
// successful TryAcquire.
func (g *Gate) Release() {
	g.open.Add(-1)
}
