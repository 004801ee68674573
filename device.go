package lpcmbox

import (
	"context"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// DeviceConfig provides configuration parameters to Attach.
type DeviceConfig struct {
	// Base is the offset of the mailbox register window within the
	// transport's address space.
	Base uint32
	// Transport performs the underlying register accesses. Required.
	Transport RegisterTransport
	// IRQ delivers events from the shared interrupt line. Each event
	// is offered to the mailbox's notification handler, which declines
	// events that do not belong to it. May be nil when the caller
	// drives ServiceInterrupt itself or only polls.
	IRQ <-chan struct{}
	// Logger receives transport degradation events. If nil the device
	// is silent.
	Logger *slog.Logger
	// Gate is the admission gate enforcing single-consumer access. If
	// nil the device gets a private gate.
	Gate *Gate
}

// Device is an attached mailbox: channel state bound to a register
// window and an interrupt line. Obtain handles with Open; stop
// interrupt servicing with Detach before discarding the device.
type Device struct {
	mbox *Mailbox
	gate *Gate
	irq  <-chan struct{}
	quit chan struct{}
	done chan struct{}
}

// Attach binds a mailbox to its resolved resources. The mailbox state
// is fully constructed before the interrupt pump starts, so an early
// notification cannot race incomplete initialization. Attach then
// establishes the initial register state: per-register interrupt
// enables disabled, write-one-to-clear status registers cleared, and
// the notification path armed.
//
// Attach panics if the transport is nil.
func Attach(cfg DeviceConfig) *Device {
	gate := cfg.Gate
	if gate == nil {
		gate = &Gate{}
	}
	d := &Device{
		mbox: New(Config{Base: cfg.Base, Transport: cfg.Transport, Logger: cfg.Logger}),
		gate: gate,
		irq:  cfg.IRQ,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	d.mbox.initHardware()
	go d.pump()
	return d
}

// pump forwards interrupt line events to the notification handler
// until Detach or until the IRQ channel is closed.
func (d *Device) pump() {
	defer close(d.done)
	if d.irq == nil {
		<-d.quit
		return
	}
	for {
		select {
		case _, ok := <-d.irq:
			if !ok {
				return
			}
			d.mbox.ServiceInterrupt()
		case <-d.quit:
			return
		}
	}
}

// Detach stops interrupt servicing. It does not return until the
// notification handler can no longer run, so the caller may free
// whatever backs the transport afterwards.
func (d *Device) Detach() {
	close(d.quit)
	<-d.done
}

// Mailbox exposes the device's channel state for callers that dispatch
// interrupts themselves.
func (d *Device) Mailbox() *Mailbox {
	return d.mbox
}

// Open admits one consumer to the mailbox. A second Open while a
// handle is outstanding fails fast with ErrBusy; it never blocks
// waiting for the holder. The successful opener's first action is to
// discard any stale pending state and re-arm notifications, so a
// fresh consumer never observes a message from before its admission.
func (d *Device) Open() (*Handle, error) {
	if !d.gate.TryAcquire() {
		return nil, ErrBusy
	}
	d.mbox.clearAndRearm()
	return &Handle{dev: d}, nil
}

// Handle is one consumer's claim on a mailbox. All methods are safe
// for concurrent use; reads and writes serialize on the mailbox's
// internal mutex.
type Handle struct {
	dev    *Device
	closed atomic.Bool
}

// Read blocks until a message is pending, then copies slots
// offset..offset+len(dst)-1 into dst. See Mailbox.Read.
func (h *Handle) Read(ctx context.Context, dst []byte, offset int) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	return h.dev.mbox.Read(ctx, dst, offset)
}

// TryRead is the non-blocking variant of Read, returning ErrWouldBlock
// when no message is pending.
func (h *Handle) TryRead(dst []byte, offset int) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	return h.dev.mbox.TryRead(dst, offset)
}

// Write copies src into slots offset..offset+len(src)-1 and signals
// the peer. See Mailbox.Write.
func (h *Handle) Write(src []byte, offset int) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	return h.dev.mbox.Write(src, offset)
}

// Poll reports readiness and a wake channel closed on the next
// notification. See Mailbox.Poll.
func (h *Handle) Poll() (ready bool, wake <-chan struct{}) {
	if h.closed.Load() {
		return false, nil
	}
	return h.dev.mbox.Poll()
}

// Close releases the consumer's claim so a subsequent Open can
// succeed. Closing an already closed handle returns ErrClosed.
func (h *Handle) Close() error {
	if h.closed.Swap(true) {
		return ErrClosed
	}
	h.dev.gate.Release()
	return nil
}
