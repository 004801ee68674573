/*
package mboxserial bridges mailbox register access over a byte stream,
typically a USB serial adapter wired to a bring-up rig that exposes the
register bank on its end of the link.

Every register access is one fixed-size frame exchange:

	request:  | op(1) | addr(4, big endian) | value(1) | lrc(1) |
	response: | status(1) | value(1) | lrc(1) |

op is 0x01 for a read (value ignored) and 0x02 for a write. status is
0x00 on success and 0x01 when the far side failed the access. lrc is
the two's complement of the byte sum of the preceding frame bytes.
Frames are fixed length so a corrupted frame never desynchronizes the
stream; it is consumed whole and reported.
*/
package mboxserial

import (
	"encoding/binary"
	"errors"
)

const (
	opRead  = 0x01
	opWrite = 0x02

	statusOK    = 0x00
	statusFault = 0x01

	requestLen  = 7
	responseLen = 3
)

var (
	// ErrBadLRC is returned when a frame's checksum does not match.
	ErrBadLRC = errors.New("bad LRC")
	// ErrBridgeFault is returned when the far side reports a failed
	// register access.
	ErrBridgeFault = errors.New("bridge register access fault")
	// ErrBadOp is returned by the server for an unknown opcode.
	ErrBadOp = errors.New("bad bridge opcode")
)

// generateLRC returns the two's complement of the byte sum of b.
func generateLRC(b []byte) (lrc uint8) {
	for i := 0; i < len(b); i++ {
		lrc += b[i]
	}
	return uint8(-int8(lrc)) // This is how you take two's complement in Go.
}

func encodeRequest(dst *[requestLen]byte, op byte, addr uint32, value byte) {
	dst[0] = op
	binary.BigEndian.PutUint32(dst[1:5], addr)
	dst[5] = value
	dst[6] = generateLRC(dst[:6])
}

func encodeResponse(dst *[responseLen]byte, status, value byte) {
	dst[0] = status
	dst[1] = value
	dst[2] = generateLRC(dst[:2])
}
