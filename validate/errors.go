package validate

import (
	"fmt"

	"torq.dev/core/protocol"
)

// RejectReason enumerates the distinct rejection reasons of §4.3's
// numbered algorithm; each step maps to one reason (§4.3 "Errors").
type RejectReason int

const (
	ReasonNone RejectReason = iota
	ReasonTooShort
	ReasonBadMagic
	ReasonUnsupportedVersion
	ReasonDomainMismatch
	ReasonLengthMismatch
	ReasonPayloadTooLarge
	ReasonChecksumMismatch
	ReasonTLVDomainMismatch
	ReasonTLVSizeMismatch
	ReasonTimestampSkew
	ReasonMissingRequiredTLV
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonTooShort:
		return "TooShort"
	case ReasonBadMagic:
		return "BadMagic"
	case ReasonUnsupportedVersion:
		return "UnsupportedVersion"
	case ReasonDomainMismatch:
		return "DomainMismatch"
	case ReasonLengthMismatch:
		return "LengthMismatch"
	case ReasonPayloadTooLarge:
		return "PayloadTooLarge"
	case ReasonChecksumMismatch:
		return "ChecksumMismatch"
	case ReasonTLVDomainMismatch:
		return "TLVDomainMismatch"
	case ReasonTLVSizeMismatch:
		return "TLVSizeMismatch"
	case ReasonTimestampSkew:
		return "TimestampSkew"
	case ReasonMissingRequiredTLV:
		return "MissingRequiredTLV"
	default:
		return "Unknown"
	}
}

// RejectError carries the rejection reason plus whatever context is
// available: the offending TLV type, and expected vs. actual values
// (§4.3 "Errors": "surfaced with: domain, offending type (if applicable),
// expected vs. actual").
type RejectError struct {
	Reason        RejectReason
	Domain        protocol.RelayDomain
	TLVType       uint8
	HasTLVType    bool
	Expected      string
	Actual        string
	UnderlyingErr error
}

func (e *RejectError) Error() string {
	msg := fmt.Sprintf("validate: rejected: %s", e.Reason)
	if e.HasTLVType {
		msg += fmt.Sprintf(" tlv_type=%d", e.TLVType)
	}
	if e.Domain.Valid() {
		msg += fmt.Sprintf(" domain=%s", e.Domain)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" expected=%q actual=%q", e.Expected, e.Actual)
	}
	if e.UnderlyingErr != nil {
		msg += ": " + e.UnderlyingErr.Error()
	}
	return msg
}

func (e *RejectError) Unwrap() error { return e.UnderlyingErr }
