// Package protocol implements Torq's Protocol V2 wire format: a fixed
// 32-byte header followed by a sequence of self-describing TLV extensions.
// Parsing borrows the input buffer and allocates nothing; Build is a pure
// function of its inputs.
package protocol

import (
	"encoding/binary"
	"hash/crc32"
	"strconv"
)

const (
	// HeaderSize is the fixed on-wire size of the message header (§3.1, invariant H2).
	HeaderSize = 32

	// Magic identifies Protocol V2 frames.
	Magic uint32 = 0xDEADBEEF

	// Version is the only protocol version this codec understands (§9, Open Question).
	Version uint8 = 2

	// MaxPayloadBytes is the hard cap on payload_length (§3.1, invariant H1).
	MaxPayloadBytes = 65535
)

// RelayDomain partitions TLV type numbers and selects a relay process (§3.1, §3.3).
type RelayDomain uint8

const (
	DomainMarketData RelayDomain = 1
	DomainSignal     RelayDomain = 2
	DomainExecution  RelayDomain = 3
	DomainSystem     RelayDomain = 4
)

func (d RelayDomain) String() string {
	switch d {
	case DomainMarketData:
		return "MarketData"
	case DomainSignal:
		return "Signal"
	case DomainExecution:
		return "Execution"
	case DomainSystem:
		return "System"
	default:
		return "Unknown"
	}
}

// Valid reports whether d is one of the four defined relay domains.
func (d RelayDomain) Valid() bool {
	switch d {
	case DomainMarketData, DomainSignal, DomainExecution, DomainSystem:
		return true
	default:
		return false
	}
}

// HeaderFields are the logical contents of the 32-byte header, used by Build.
type HeaderFields struct {
	RelayDomain RelayDomain
	SourceType  uint16
	TimestampNs uint64
	Sequence    uint64
}

// HeaderView is a zero-copy view over a parsed 32-byte header: it borrows
// the bytes it was parsed from and must not outlive them.
type HeaderView struct {
	raw []byte
}

func (h HeaderView) Magic() uint32 {
	return binary.LittleEndian.Uint32(h.raw[0:4])
}

func (h HeaderView) Version() uint8 {
	return h.raw[4]
}

func (h HeaderView) RelayDomain() RelayDomain {
	return RelayDomain(h.raw[5])
}

func (h HeaderView) SourceType() uint16 {
	return binary.LittleEndian.Uint16(h.raw[6:8])
}

func (h HeaderView) TimestampNs() uint64 {
	return binary.LittleEndian.Uint64(h.raw[8:16])
}

func (h HeaderView) Sequence() uint64 {
	return binary.LittleEndian.Uint64(h.raw[16:24])
}

func (h HeaderView) PayloadLength() uint32 {
	return binary.LittleEndian.Uint32(h.raw[24:28])
}

func (h HeaderView) Checksum() uint32 {
	return binary.LittleEndian.Uint32(h.raw[28:32])
}

// Bytes returns the raw 32-byte header, still borrowing the original buffer.
func (h HeaderView) Bytes() []byte {
	return h.raw
}

// ParseHeader requires at least HeaderSize bytes, verifies the magic, and
// returns a view borrowing b. It never reaches into the payload (invariant H2).
func ParseHeader(b []byte) (HeaderView, error) {
	if len(b) < HeaderSize {
		return HeaderView{}, newFrameError(ErrTooShort, len(b))
	}
	view := HeaderView{raw: b[:HeaderSize]}
	if view.Magic() != Magic {
		return HeaderView{}, newFrameError(ErrBadMagic, 0)
	}
	if view.Version() != Version {
		return HeaderView{}, newFrameError(ErrUnsupportedVersion, 4)
	}
	return view, nil
}

// ChecksumIEEE computes the frame checksum: CRC32 (IEEE 802.3 polynomial,
// init 0xFFFFFFFF, xor-out 0xFFFFFFFF) over the payload region (§3.1). The
// stdlib crc32.ChecksumIEEE already applies that init/xor-out convention.
func ChecksumIEEE(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// BuildHeader serializes fields plus the already-encoded TLV payload into a
// fixed 32-byte header. payload_length and checksum are derived from
// payload, never taken from fields.
func BuildHeader(fields HeaderFields, payload []byte) ([HeaderSize]byte, error) {
	var out [HeaderSize]byte
	if len(payload) > MaxPayloadBytes {
		return out, ErrPayloadTooLarge
	}
	if !fields.RelayDomain.Valid() {
		return out, newFrameError(errUnknownDomain(fields.RelayDomain), 5)
	}
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	out[4] = Version
	out[5] = byte(fields.RelayDomain)
	binary.LittleEndian.PutUint16(out[6:8], fields.SourceType)
	binary.LittleEndian.PutUint64(out[8:16], fields.TimestampNs)
	binary.LittleEndian.PutUint64(out[16:24], fields.Sequence)
	binary.LittleEndian.PutUint32(out[24:28], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[28:32], ChecksumIEEE(payload))
	return out, nil
}

func errUnknownDomain(d RelayDomain) error {
	return &unknownDomainError{domain: d}
}

type unknownDomainError struct {
	domain RelayDomain
}

func (e *unknownDomainError) Error() string {
	return "protocol: relay_domain " + strconv.Itoa(int(e.domain)) + " is not one of 1..4"
}
