// Package builder is the fluent TLV message assembly API (§4.5): it wraps
// protocol.Build with compile-time-checked domain/source_type identity and
// runtime type->domain consistency checks, so a producer constructed for
// one domain cannot accidentally emit a frame another relay will reject.
package builder

import (
	"errors"
	"fmt"

	"torq.dev/core/protocol"
	"torq.dev/core/registry"
)

var (
	// ErrDomainMismatch is returned by AddTLV when tlvType does not belong
	// to the builder's configured domain (§4.5, §4.3 step 7).
	ErrDomainMismatch = errors.New("builder: tlv_type does not belong to this domain")
	// ErrSizeExceeded is returned when a TLV's payload violates the
	// registry's expected size for its type.
	ErrSizeExceeded = errors.New("builder: payload size violates registry constraint")
)

// Builder assembles TLVs for a single relay domain and source_type. It is
// not safe for concurrent use; build one frame per Builder.
type Builder struct {
	domain     protocol.RelayDomain
	sourceType uint16
	tlvs       []protocol.TLV
	err        error
}

// New starts a builder bound to domain and sourceType. Every TLV added via
// AddTLV is checked against domain before it is accepted.
func New(domain protocol.RelayDomain, sourceType uint16) *Builder {
	return &Builder{domain: domain, sourceType: sourceType}
}

// AddTLV appends a TLV, rejecting it if tlvType isn't in the builder's
// domain or its payload violates the registry's expected size. Errors are
// sticky: once set, subsequent calls are no-ops and Build returns the error.
func (b *Builder) AddTLV(tlvType uint16, payload []byte) *Builder {
	if b.err != nil {
		return b
	}
	// Every registry type fits in the low byte (§3.3: valid types are
	// 1-99); a tlvType above 0xFF is categorically out-of-domain, not just
	// unregistered, so it must fail the same domain check the low-byte
	// path applies rather than bypass it.
	if tlvType > 0xFF {
		b.err = fmt.Errorf("%w: type=%d domain=%s", ErrDomainMismatch, tlvType, b.domain)
		return b
	}
	if !registry.IsInDomain(uint8(tlvType), b.domain) {
		b.err = fmt.Errorf("%w: type=%d domain=%s", ErrDomainMismatch, tlvType, b.domain)
		return b
	}
	if expected := registry.ExpectedSizeFor(uint8(tlvType)); expected.Check(len(payload)) != nil {
		b.err = fmt.Errorf("%w: type=%d len=%d", ErrSizeExceeded, tlvType, len(payload))
		return b
	}
	b.tlvs = append(b.tlvs, protocol.TLV{Type: tlvType, Payload: payload})
	return b
}

// Build finalizes the frame with the given sequence and timestamp. It
// returns any error accumulated by AddTLV before attempting encoding.
func (b *Builder) Build(sequence uint64, timestampNs uint64) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	fields := protocol.HeaderFields{
		RelayDomain: b.domain,
		SourceType:  b.sourceType,
		TimestampNs: timestampNs,
		Sequence:    sequence,
	}
	return protocol.Build(fields, b.tlvs)
}
