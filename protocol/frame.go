package protocol

// Frame is a parsed message: a header view plus the raw payload bytes it
// describes, both borrowing the original buffer (§4.1 "Guarantees").
type Frame struct {
	Header  HeaderView
	Payload []byte
}

// Build concatenates the 32-byte header with the encoded TLV region,
// computing payload_length and checksum after the TLVs are laid out.
// Build is deterministic: equal fields and tlvs always yield byte-equal
// output (§4.1 "Guarantees").
func Build(fields HeaderFields, tlvs []TLV) ([]byte, error) {
	payload, err := EncodeTLVs(tlvs)
	if err != nil {
		return nil, err
	}
	header, err := BuildHeader(fields, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, header[:]...)
	out = append(out, payload...)
	return out, nil
}

// ParseFrame parses a complete frame: header plus the payload region it
// declares. It is total on any input of length >= HeaderSize: it either
// returns a structurally valid Frame or a classified *FrameError (§4.1).
func ParseFrame(b []byte) (Frame, error) {
	header, err := ParseHeader(b)
	if err != nil {
		return Frame{}, err
	}
	payloadLen := header.PayloadLength()
	if payloadLen > MaxPayloadBytes {
		return Frame{}, newFrameError(ErrPayloadTooLarge, 24)
	}
	end := HeaderSize + int(payloadLen)
	if len(b) < end {
		return Frame{}, newFrameError(ErrTlvUnderrun, len(b))
	}
	payload := b[HeaderSize:end]
	return Frame{Header: header, Payload: payload}, nil
}

// FrameLen returns the total wire length of a frame given its payload length.
func FrameLen(payloadLength uint32) int {
	return HeaderSize + int(payloadLength)
}
