package mboxserial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

func TestLRC(t *testing.T) {
	testCases := []struct {
		msg      []byte
		expected uint8
	}{
		{
			msg:      []byte{0x56},
			expected: 0xAA,
		},
		{
			msg:      []byte{0x01, 0x00, 0x00, 0x02, 0x48, 0x00}, // Read of register 0x248.
			expected: 0xB5,
		},
		{
			msg:      []byte{0xff, 0xff},
			expected: 0x02,
		},
	}
	for _, tC := range testCases {
		t.Run(fmt.Sprintf("len=%d", len(tC.msg)), func(t *testing.T) {
			got := generateLRC(tC.msg)
			if got != tC.expected {
				t.Fatalf("expected %#x, got %#x", tC.expected, got)
			}
		})
	}
}

// memBank is a register bank for the far side of the bridge.
type memBank struct {
	mu       sync.Mutex
	regs     map[uint32]byte
	failAddr uint32
	fail     bool
}

func (b *memBank) ReadByte(addr uint32) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail && addr == b.failAddr {
		return 0, errors.New("bank fault")
	}
	return b.regs[addr], nil
}

func (b *memBank) WriteByte(addr uint32, v byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail && addr == b.failAddr {
		return errors.New("bank fault")
	}
	if b.regs == nil {
		b.regs = make(map[uint32]byte)
	}
	b.regs[addr] = v
	return nil
}

type rw struct {
	io.Reader
	io.Writer
}

// newLoopback wires a Transport to a Server over in-memory pipes and
// runs the server until the test ends.
func newLoopback(t *testing.T, bank *memBank) *Transport {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	trp := NewTransport(rw{Reader: r1, Writer: w2})
	srv := NewServer(rw{Reader: r2, Writer: w1}, bank)
	quit := make(chan struct{})
	t.Cleanup(func() {
		close(quit)
		r2.Close()
		w1.Close()
	})
	go func() {
		for {
			err := srv.HandleNext()
			select {
			case <-quit:
				return
			default:
			}
			if err != nil && !errors.Is(err, ErrBadLRC) {
				return
			}
		}
	}()
	return trp
}

func TestBridgeLoopback(t *testing.T) {
	bank := &memBank{}
	trp := newLoopback(t, bank)

	writes := map[uint32]byte{
		0x200: 0x11,
		0x248: 0x81,
		0x254: 0x00,
	}
	for addr, v := range writes {
		if err := trp.WriteByte(addr, v); err != nil {
			t.Fatalf("write %#x: %v", addr, err)
		}
	}
	for addr, v := range writes {
		got, err := trp.ReadByte(addr)
		if err != nil {
			t.Fatalf("read %#x: %v", addr, err)
		}
		if got != v {
			t.Fatalf("read %#x: expected %#x, got %#x", addr, v, got)
		}
	}
}

func TestBridgeFault(t *testing.T) {
	bank := &memBank{failAddr: 0x248, fail: true}
	trp := newLoopback(t, bank)

	if _, err := trp.ReadByte(0x248); !errors.Is(err, ErrBridgeFault) {
		t.Fatalf("expected ErrBridgeFault, got %v", err)
	}
	if err := trp.WriteByte(0x248, 1); !errors.Is(err, ErrBridgeFault) {
		t.Fatalf("expected ErrBridgeFault, got %v", err)
	}
	// The stream must remain usable after a fault.
	if err := trp.WriteByte(0x200, 0x42); err != nil {
		t.Fatalf("bridge desynchronized after fault: %v", err)
	}
	got, err := trp.ReadByte(0x200)
	if err != nil || got != 0x42 {
		t.Fatalf("bridge desynchronized after fault: got %#x err=%v", got, err)
	}
}

func TestBridgeBadLRC(t *testing.T) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	srv := NewServer(rw{Reader: r2, Writer: w1}, &memBank{})
	errc := make(chan error, 1)
	go func() { errc <- srv.HandleNext() }()

	var req [requestLen]byte
	encodeRequest(&req, opRead, 0x200, 0)
	req[6] ^= 0xff // corrupt the checksum
	if _, err := w2.Write(req[:]); err != nil {
		t.Fatal(err)
	}
	var resp [responseLen]byte
	if _, err := io.ReadFull(r1, resp[:]); err != nil {
		t.Fatal(err)
	}
	if resp[0] != statusFault {
		t.Fatalf("expected fault status, got %#x", resp[0])
	}
	if err := <-errc; !errors.Is(err, ErrBadLRC) {
		t.Fatalf("expected ErrBadLRC, got %v", err)
	}
}
