package lpcmbox

import "errors"

// NumRegs is the number of one-byte data slot registers in the mailbox
// window. A read or write transaction addresses a contiguous sub-range
// of these slots.
const NumRegs = 16

// Register offsets within the mailbox window. Each register is one
// byte wide but registers sit four bytes apart in the address space;
// the reserved upper bytes of a wide access are not to be trusted, so
// all values are masked to the low 8 bits.
const (
	regData0      = 0x00
	regStatus0    = 0x40 // write-one-to-clear, slot 0-7 status
	regStatus1    = 0x44 // write-one-to-clear, slot 8-15 status
	regBMCCtrl    = 0x48
	regHostCtrl   = 0x4c // driven by the peer, not touched here
	regInterrupt0 = 0x50 // per-register interrupt enables, slots 0-7
	regInterrupt1 = 0x54 // per-register interrupt enables, slots 8-15
)

// Control register bits. The recv bit is write-one-to-clear in
// hardware and doubles as the interrupt unmask, so writing it clears
// pending status and re-enables notifications in a single access.
const (
	ctrlSend = 1 << 0
	ctrlMask = 1 << 1
	ctrlRecv = 1 << 7
)

// regDataSlot returns the window offset of data slot register i.
func regDataSlot(i int) uint32 {
	return regData0 + uint32(i)*4
}

var (
	// ErrInvalidRange is returned when offset and length exceed the
	// 16 byte mailbox window. No register is touched.
	ErrInvalidRange = errors.New("offset and length exceed mailbox window")
	// ErrBusy is returned by Open while another handle holds the
	// mailbox. Open never blocks waiting for the holder.
	ErrBusy = errors.New("mailbox already open")
	// ErrWouldBlock is returned by non-blocking reads when no message
	// is pending.
	ErrWouldBlock = errors.New("no message pending")
	// ErrInterrupted is returned when a blocking read's wait is
	// cancelled before data arrives. It wraps the context error.
	ErrInterrupted = errors.New("wait interrupted")
	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("mailbox handle closed")
)
