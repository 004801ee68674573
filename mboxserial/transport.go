package mboxserial

import (
	"io"
	"sync"
)

// Transport implements lpcmbox.RegisterTransport over a byte stream
// speaking the bridge frame protocol. Round trips are serialized by a
// mutex so the mailbox's interrupt path and a consumer transaction may
// access registers concurrently.
type Transport struct {
	mu   sync.Mutex
	port io.ReadWriter
}

// NewTransport creates a Transport over port. NewTransport panics if
// port is nil. Callers opening real serial hardware typically pass a
// go.bug.st/serial port.
func NewTransport(port io.ReadWriter) *Transport {
	if port == nil {
		panic("nil port")
	}
	return &Transport{port: port}
}

// ReadByte reads the register at addr through the bridge.
func (t *Transport) ReadByte(addr uint32) (byte, error) {
	return t.roundTrip(opRead, addr, 0)
}

// WriteByte writes b to the register at addr through the bridge.
func (t *Transport) WriteByte(addr uint32, b byte) error {
	_, err := t.roundTrip(opWrite, addr, b)
	return err
}

func (t *Transport) roundTrip(op byte, addr uint32, value byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var req [requestLen]byte
	encodeRequest(&req, op, addr, value)
	if _, err := t.port.Write(req[:]); err != nil {
		return 0, err
	}
	var resp [responseLen]byte
	if _, err := io.ReadFull(t.port, resp[:]); err != nil {
		return 0, err
	}
	if generateLRC(resp[:2]) != resp[2] {
		return 0, ErrBadLRC
	}
	if resp[0] != statusOK {
		return 0, ErrBridgeFault
	}
	return resp[1], nil
}
