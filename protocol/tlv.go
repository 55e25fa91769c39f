package protocol

import "encoding/binary"

const (
	// ExtendedTypeSentinel marks a TLV as using the extended form (§3.2).
	ExtendedTypeSentinel = 255

	standardHeaderBytes = 2 // tlv_type, tlv_length
	extendedHeaderBytes = 6 // tlv_type(255), reserved, extended_type(2), extended_length(2)
)

// TLV is a decoded type-length-value extension ready for encoding.
type TLV struct {
	Type    uint16
	Payload []byte
}

// isExtended reports whether t must be encoded in extended form: the
// sentinel type, or a payload too large for the standard 1-byte length (§3.2).
func (t TLV) isExtended() bool {
	return t.Type >= ExtendedTypeSentinel || len(t.Payload) > 255
}

func (t TLV) encodedLen() int {
	if t.isExtended() {
		return extendedHeaderBytes + len(t.Payload)
	}
	return standardHeaderBytes + len(t.Payload)
}

// EncodeTLVs lays out tlvs back-to-back in their standard or extended wire
// form. The caller is responsible for ensuring each TLV's type is valid
// for the frame's domain (registry.IsInDomain) before calling this.
func EncodeTLVs(tlvs []TLV) ([]byte, error) {
	total := 0
	for _, t := range tlvs {
		total += t.encodedLen()
	}
	out := make([]byte, 0, total)
	for _, t := range tlvs {
		if t.isExtended() {
			if t.Type > 0xFFFF {
				return nil, ErrTlvOverrun
			}
			if len(t.Payload) > 0xFFFF {
				return nil, ErrTlvOverrun
			}
			var hdr [extendedHeaderBytes]byte
			hdr[0] = ExtendedTypeSentinel
			hdr[1] = 0 // reserved
			binary.LittleEndian.PutUint16(hdr[2:4], t.Type)
			binary.LittleEndian.PutUint16(hdr[4:6], uint16(len(t.Payload)))
			out = append(out, hdr[:]...)
			out = append(out, t.Payload...)
		} else {
			if t.Type > 0xFF {
				return nil, ErrTlvOverrun
			}
			var hdr [standardHeaderBytes]byte
			hdr[0] = byte(t.Type)
			hdr[1] = byte(len(t.Payload))
			out = append(out, hdr[:]...)
			out = append(out, t.Payload...)
		}
	}
	return out, nil
}

// TLVView is a zero-copy view over one TLV extension within a borrowed
// payload buffer.
type TLVView struct {
	Type    uint16
	Payload []byte // borrows the parent buffer
}

// TLVIterator is a restartable, allocation-free sequence over a single TLV
// payload buffer (§4.1: "lazy sequence of tlv_view"). Each call to Next
// advances exactly one standard or extended TLV.
type TLVIterator struct {
	buf []byte
	pos int
}

// NewTLVIterator begins iterating over payload. It does not validate
// invariant T1 (sum of TLV sizes == payload_length) up front; Next returns
// ErrTlvUnderrun (or ErrExtendedReservedNonZero for a bad extended header)
// as soon as a malformed TLV is reached.
func NewTLVIterator(payload []byte) *TLVIterator {
	return &TLVIterator{buf: payload}
}

// Next returns the next TLV view, or (TLVView{}, false, nil) once the
// buffer is fully consumed. A non-nil error means the buffer is malformed
// (invariant T1 violation) and iteration must stop.
func (it *TLVIterator) Next() (TLVView, bool, error) {
	if it.pos == len(it.buf) {
		return TLVView{}, false, nil
	}
	remaining := it.buf[it.pos:]
	if len(remaining) < standardHeaderBytes {
		return TLVView{}, false, newFrameError(ErrTlvUnderrun, it.pos)
	}
	tlvType := remaining[0]
	if tlvType == ExtendedTypeSentinel {
		if len(remaining) < extendedHeaderBytes {
			return TLVView{}, false, newFrameError(ErrTlvUnderrun, it.pos)
		}
		if remaining[1] != 0 {
			return TLVView{}, false, newFrameError(ErrExtendedReservedNonZero, it.pos+1)
		}
		extType := binary.LittleEndian.Uint16(remaining[2:4])
		extLen := int(binary.LittleEndian.Uint16(remaining[4:6]))
		if len(remaining) < extendedHeaderBytes+extLen {
			return TLVView{}, false, newFrameError(ErrTlvUnderrun, it.pos)
		}
		view := TLVView{Type: extType, Payload: remaining[extendedHeaderBytes : extendedHeaderBytes+extLen]}
		it.pos += extendedHeaderBytes + extLen
		return view, true, nil
	}

	tlvLen := int(remaining[1])
	if len(remaining) < standardHeaderBytes+tlvLen {
		return TLVView{}, false, newFrameError(ErrTlvUnderrun, it.pos)
	}
	view := TLVView{Type: uint16(tlvType), Payload: remaining[standardHeaderBytes : standardHeaderBytes+tlvLen]}
	it.pos += standardHeaderBytes + tlvLen
	return view, true, nil
}

// ParseTLVs drains the iterator into a slice, and verifies invariant T1 (the
// sum of on-wire TLV sizes equals len(payload) exactly — no trailing bytes).
func ParseTLVs(payload []byte) ([]TLVView, error) {
	it := NewTLVIterator(payload)
	var out []TLVView
	for {
		view, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, view)
	}
	if it.pos != len(payload) {
		return nil, newFrameError(ErrTlvOverrun, it.pos)
	}
	return out, nil
}

// FindTLV performs a linear scan for the first TLV of the given type,
// returning its payload view. O(n) in the number of TLVs present, which
// spec.md accepts given the typical frame has at most ~8 TLVs (§4.1).
func FindTLV(payload []byte, tlvType uint16) ([]byte, bool, error) {
	it := NewTLVIterator(payload)
	for {
		view, ok, err := it.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		if view.Type == tlvType {
			return view.Payload, true, nil
		}
	}
}
