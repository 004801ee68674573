/*
package lpcmbox implements the shared-memory mailbox that lets a
service processor (BMC) and its host exchange small fixed-size messages
through a bank of hardware registers on the LPC bus.

# Glossary

  - Mailbox window: 16 one-byte data slot registers plus control,
    status and interrupt-enable registers, addressed at a four byte
    stride from a base offset.
  - Data-ready (recv) bit: control register bit set by hardware when
    the peer posts a message. Write-one-to-clear; the same write also
    unmasks the interrupt line.
  - Mask bit: suppresses further interrupts from this source without
    discarding the pending-data indication. Needed because the line is
    level triggered and shared between devices.
  - Send bit: raised after a complete outbound transfer to signal the
    peer that a new message is available.

# Register access

All hardware access goes through a [RegisterTransport], one byte at a
time, attempted exactly once. A transport read failure substitutes the
0xff sentinel and a write failure is ignored; both are logged through
the configured logger rather than surfaced, so a consumer cannot tell
a degraded transport from an idle mailbox without reading the log.
*/
package lpcmbox

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"
)

// RegisterTransport performs byte-granular access against the register
// bank backing a mailbox. Implementations must tolerate concurrent
// calls: the interrupt path issues single-register accesses while a
// consumer transaction is in flight.
//
// Each access is attempted exactly once; the mailbox never retries.
type RegisterTransport interface {
	// ReadByte reads the register at addr. Registers are one byte
	// wide; wider transports must mask to the low 8 bits.
	ReadByte(addr uint32) (byte, error)
	// WriteByte writes b to the register at addr.
	WriteByte(addr uint32, b byte) error
}

// Config provides configuration parameters to New.
type Config struct {
	// Base is the offset of this mailbox's register window within the
	// transport's address space.
	Base uint32
	// Transport performs the underlying register accesses. Required.
	Transport RegisterTransport
	// Logger receives transport degradation events. If nil the
	// mailbox is silent.
	Logger *slog.Logger
}

// Mailbox is the channel state for one mailbox device instance. The
// zero value is not usable; create mailboxes with New.
//
// Two execution contexts touch a Mailbox: consumer-driven operations
// (Read, TryRead, Write), which serialize against each other on an
// internal mutex, and ServiceInterrupt, which is called from the
// interrupt dispatch context and never takes that mutex.
type Mailbox struct {
	base uint32
	trp  RegisterTransport
	log  *slog.Logger

	// mu serializes read and write bodies so multi-register transfers
	// appear atomic to both sides despite the transport only
	// guaranteeing single-register atomicity.
	mu sync.Mutex

	// wake is closed and replaced by the interrupt path to broadcast
	// to blocked readers. muWake only guards the swap and is never
	// held across hardware access or blocking.
	muWake sync.Mutex
	wake   chan struct{}
}

// New creates a Mailbox over the given transport. New panics if the
// transport is nil. The returned mailbox is fully initialized and safe
// to expose to the interrupt path immediately.
func New(cfg Config) *Mailbox {
	if cfg.Transport == nil {
		panic("nil transport")
	}
	return &Mailbox{
		base: cfg.Base,
		trp:  cfg.Transport,
		log:  cfg.Logger,
		wake: make(chan struct{}),
	}
}

// inb reads the register at window offset reg. On transport failure
// the 0xff sentinel is substituted and the failure logged.
func (mb *Mailbox) inb(reg uint32) byte {
	b, err := mb.trp.ReadByte(mb.base + reg)
	if err != nil {
		mb.logerr("register read failed", reg, err)
		return 0xff
	}
	return b
}

// outb writes b to the register at window offset reg. A transport
// failure is logged and otherwise ignored.
func (mb *Mailbox) outb(reg uint32, b byte) {
	if err := mb.trp.WriteByte(mb.base+reg, b); err != nil {
		mb.logerr("register write failed", reg, err)
	}
}

func (mb *Mailbox) logerr(msg string, reg uint32, err error) {
	if mb.log != nil {
		mb.log.Error(msg, "reg", reg, "err", err)
	}
}

// clearAndRearm writes the recv bit back to the control register. The
// bit is write-one-to-clear and doubles as the interrupt unmask, so
// pending status is discarded and notifications re-enabled in one
// register write. Splitting it into two writes would reopen a race
// against the peer's next message.
func (mb *Mailbox) clearAndRearm() {
	mb.outb(regBMCCtrl, ctrlRecv)
}

// Readable reports whether an unread message is pending. It issues a
// single status register read and takes no locks.
func (mb *Mailbox) Readable() bool {
	return mb.inb(regBMCCtrl)&ctrlRecv != 0
}

// Poll reports current readiness and returns a channel closed on the
// next notification, letting callers compose select loops the way a
// poll entry point registers with a wait queue. Safe to call
// concurrently with all other operations.
func (mb *Mailbox) Poll() (ready bool, wake <-chan struct{}) {
	return mb.Readable(), mb.wakeChan()
}

// ServiceInterrupt handles one event from the shared interrupt line.
// It returns false without side effects when the event does not belong
// to this mailbox (recv bit unset) so the dispatcher can offer the
// event to other handlers.
//
// When the event is ours the recv bit is left set, the mask bit is
// written to suppress re-delivery of the level-triggered interrupt
// until a reader drains the message, and blocked readers are woken.
// ServiceInterrupt never takes the serialization mutex and is safe to
// call while a consumer transaction is in flight.
func (mb *Mailbox) ServiceInterrupt() bool {
	if mb.inb(regBMCCtrl)&ctrlRecv == 0 {
		return false
	}
	// Leave recv set so the pending message survives; a full read
	// clears it and unmasks in one write via clearAndRearm.
	mb.outb(regBMCCtrl, ctrlMask)
	mb.wakeReaders()
	return true
}

func (mb *Mailbox) wakeChan() <-chan struct{} {
	mb.muWake.Lock()
	ch := mb.wake
	mb.muWake.Unlock()
	return ch
}

func (mb *Mailbox) wakeReaders() {
	mb.muWake.Lock()
	close(mb.wake)
	mb.wake = make(chan struct{})
	mb.muWake.Unlock()
}

// waitReadable blocks until a message is pending or ctx is cancelled.
func (mb *Mailbox) waitReadable(ctx context.Context) error {
	for {
		// Grab the wake channel before checking the condition so a
		// notification between the check and the select is not lost.
		ch := mb.wakeChan()
		if mb.Readable() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		}
	}
}

// Read blocks until a message is pending, then copies slots
// offset..offset+len(dst)-1 into dst and clears the data-ready state,
// re-arming notifications for the next message. It returns the number
// of bytes copied.
//
// Cancelling ctx while blocked returns ErrInterrupted. A request past
// the 16 byte window returns ErrInvalidRange without touching any
// register.
func (mb *Mailbox) Read(ctx context.Context, dst []byte, offset int) (int, error) {
	return mb.ReadFunc(ctx, offset, len(dst), func(i int, b byte) error {
		dst[i] = b
		return nil
	})
}

// TryRead is the non-blocking variant of Read. If no message is
// pending it returns ErrWouldBlock immediately.
func (mb *Mailbox) TryRead(dst []byte, offset int) (int, error) {
	return mb.TryReadFunc(offset, len(dst), func(i int, b byte) error {
		dst[i] = b
		return nil
	})
}

// ReadFunc is the functional form of Read: each slot byte is handed to
// put in ascending slot order. If put fails the transfer stops and
// ReadFunc returns the count delivered so far together with put's
// error; the data-ready state is left untouched so a later read still
// observes the message. Only a fully delivered transfer clears the
// status and re-arms notifications.
func (mb *Mailbox) ReadFunc(ctx context.Context, offset, length int, put func(i int, b byte) error) (int, error) {
	if offset < 0 || length < 0 || offset+length > NumRegs {
		return 0, ErrInvalidRange
	}
	if err := mb.waitReadable(ctx); err != nil {
		return 0, err
	}
	return mb.drain(offset, length, put)
}

// TryReadFunc is the non-blocking variant of ReadFunc.
func (mb *Mailbox) TryReadFunc(offset, length int, put func(i int, b byte) error) (int, error) {
	if offset < 0 || length < 0 || offset+length > NumRegs {
		return 0, ErrInvalidRange
	}
	if !mb.Readable() {
		return 0, ErrWouldBlock
	}
	return mb.drain(offset, length, put)
}

func (mb *Mailbox) drain(offset, length int, put func(i int, b byte) error) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := 0; i < length; i++ {
		b := mb.inb(regDataSlot(offset + i))
		if err := put(i, b); err != nil {
			// Partial delivery: leave recv set so the remainder is
			// still observable and the peer cannot overwrite it.
			return i, err
		}
	}
	mb.clearAndRearm()
	return length, nil
}

// Write copies src into slots offset..offset+len(src)-1 and raises the
// send bit to signal the peer. Writes never wait on the data-ready
// condition: the two directions are independent signals sharing one
// register bank. A request past the 16 byte window returns
// ErrInvalidRange without touching any register.
func (mb *Mailbox) Write(src []byte, offset int) (int, error) {
	return mb.WriteFunc(offset, len(src), func(i int) (byte, error) {
		return src[i], nil
	})
}

// WriteFunc is the functional form of Write: get supplies each source
// byte in ascending slot order. If get fails the transfer stops and
// WriteFunc returns the count written so far together with get's
// error; the send bit is only raised after a complete transfer.
func (mb *Mailbox) WriteFunc(offset, length int, get func(i int) (byte, error)) (int, error) {
	if offset < 0 || length < 0 || offset+length > NumRegs {
		return 0, ErrInvalidRange
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := 0; i < length; i++ {
		b, err := get(i)
		if err != nil {
			return i, err
		}
		mb.outb(regDataSlot(offset+i), b)
	}
	mb.outb(regBMCCtrl, ctrlSend)
	return length, nil
}

// initHardware establishes the attach-time register state: all
// per-register interrupt enables off, both write-one-to-clear status
// registers cleared, stale pending state discarded and the
// notification path armed.
func (mb *Mailbox) initHardware() {
	mb.outb(regInterrupt0, 0x00)
	mb.outb(regInterrupt1, 0x00)
	mb.outb(regStatus0, 0xff)
	mb.outb(regStatus1, 0xff)
	mb.clearAndRearm()
}
