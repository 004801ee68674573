package mboxserial

import (
	"encoding/binary"
	"io"

	"github.com/openbmcgo/lpcmbox"
)

// Server answers bridge frames against a local register bank. It is
// the far side of a Transport: bring-up rigs run a Server in front of
// their memory-mapped registers, and the loopback tests run one in
// front of an in-memory bank.
type Server struct {
	port io.ReadWriter
	bank lpcmbox.RegisterTransport
}

// NewServer creates a Server answering requests from port against
// bank. NewServer panics if either is nil.
func NewServer(port io.ReadWriter, bank lpcmbox.RegisterTransport) *Server {
	if port == nil {
		panic("nil port")
	}
	if bank == nil {
		panic("nil bank")
	}
	return &Server{port: port, bank: bank}
}

// HandleNext reads the next request frame and answers it. This call is
// blocking. A corrupted or unknown frame is consumed whole, answered
// with a fault status so the client does not stall, and reported as an
// error; the stream stays usable for subsequent frames.
func (sv *Server) HandleNext() error {
	var req [requestLen]byte
	if _, err := io.ReadFull(sv.port, req[:]); err != nil {
		return err
	}
	if generateLRC(req[:6]) != req[6] {
		sv.respond(statusFault, 0)
		return ErrBadLRC
	}
	addr := binary.BigEndian.Uint32(req[1:5])
	switch req[0] {
	case opRead:
		b, err := sv.bank.ReadByte(addr)
		if err != nil {
			return sv.respond(statusFault, 0)
		}
		return sv.respond(statusOK, b)
	case opWrite:
		if err := sv.bank.WriteByte(addr, req[5]); err != nil {
			return sv.respond(statusFault, 0)
		}
		return sv.respond(statusOK, req[5])
	default:
		sv.respond(statusFault, 0)
		return ErrBadOp
	}
}

func (sv *Server) respond(status, value byte) error {
	var resp [responseLen]byte
	encodeResponse(&resp, status, value)
	_, err := sv.port.Write(resp[:])
	return err
}
