package relay

import (
	"bufio"
	"io"
	"net"
	"time"

	"torq.dev/core/protocol"
)

// Role tags written by a peer as the first 4 bytes after connecting (§4.4).
// Only the low byte is meaningful; the remaining three are reserved for
// future use and are read but not interpreted — spec.md does not require
// rejecting a nonzero reserved byte, so readRoleTag doesn't check them.
const (
	roleProducer      byte = 0x01
	roleConsumer      byte = 0x02
	roleBidirectional byte = 0x03
)

func readRoleTag(conn net.Conn, timeout time.Duration) (byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	var tag [4]byte
	if _, err := io.ReadFull(conn, tag[:]); err != nil {
		return 0, err
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return 0, err
	}
	switch tag[0] {
	case roleProducer, roleConsumer, roleBidirectional:
		return tag[0], nil
	default:
		return 0, ErrUnknownRoleTag
	}
}

// readFrame reads exactly one Protocol V2 frame from r: 32 header bytes,
// then header.PayloadLength() payload bytes (§4.4 "Framing on the socket").
// A short read before completing a frame is connection loss, surfaced
// as-is to the caller, which treats any error as disconnect.
func readFrame(r *bufio.Reader) ([]byte, error) {
	frame := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	header, err := protocol.ParseHeader(frame)
	if err != nil {
		return nil, err
	}
	payloadLen := header.PayloadLength()
	if payloadLen > protocol.MaxPayloadBytes {
		return nil, protocol.ErrPayloadTooLarge
	}
	full := make([]byte, protocol.HeaderSize+int(payloadLen))
	copy(full, frame)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, full[protocol.HeaderSize:]); err != nil {
			return nil, err
		}
	}
	return full, nil
}
