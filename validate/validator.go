package validate

import (
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"torq.dev/core/internal/ids"
	"torq.dev/core/protocol"
)

// ValidatedMessage is an accepted frame: a header view plus the payload
// slice, ready for the relay to forward (§4.3).
type ValidatedMessage struct {
	Header  protocol.HeaderView
	Payload []byte
}

// Validator applies one Policy to raw frame bytes, in the fixed 8-step
// order of §4.3 that short-circuits on first failure. It is safe for
// concurrent use: only the Audit-mode sequence tracker carries mutable
// state, and that state is mutex-guarded.
type Validator struct {
	policy    Policy
	domainVal DomainValidator
	seq       *sequenceTracker
	log       *logrus.Logger
	now       func() time.Time // overridable for tests
}

// New constructs a Validator for policy. Any policy inconsistency,
// including an unrecognized domain, is a construction-time error (§6).
func New(policy Policy, log *logrus.Logger) (*Validator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	dv, err := NewDomainValidator(policy.Domain)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := &Validator{
		policy:    policy,
		domainVal: dv,
		log:       log,
		now:       time.Now,
	}
	if policy.Level == Audit {
		v.seq = newSequenceTracker()
	}
	return v, nil
}

// Validate runs the numbered algorithm of §4.3 against frame, a complete
// wire frame (header + payload). On success it returns a ValidatedMessage
// borrowing frame; on failure a *RejectError classifying the step that
// failed.
func (v *Validator) Validate(frame []byte) (*ValidatedMessage, *RejectError) {
	start := v.now()

	// Step 1-3: length >= 32, magic, known version — protocol.ParseHeader
	// does all three in one pass (it never reaches into the payload).
	header, err := protocol.ParseHeader(frame)
	if err != nil {
		return nil, v.reject(classifyHeaderError(err), Record{FrameID: ids.New()})
	}

	// Step 4: relay_domain must match this validator's configured domain.
	if header.RelayDomain() != v.policy.Domain {
		return nil, v.reject(&RejectError{Reason: ReasonDomainMismatch, Domain: v.policy.Domain}, recordFor(header))
	}

	// Step 5: 32 + payload_length == frame_length; payload_length <= max.
	payloadLen := header.PayloadLength()
	if protocol.FrameLen(payloadLen) != len(frame) {
		return nil, v.reject(&RejectError{Reason: ReasonLengthMismatch, Domain: v.policy.Domain}, recordFor(header))
	}
	if int(payloadLen) > v.policy.MaxPayloadBytes {
		return nil, v.reject(&RejectError{
			Reason: ReasonPayloadTooLarge, Domain: v.policy.Domain,
			Expected: sizeString(v.policy.MaxPayloadBytes), Actual: sizeString(int(payloadLen)),
		}, recordFor(header))
	}
	payload := frame[protocol.HeaderSize:]

	// Step 6: CRC32 over payload, only when the policy enables it.
	if v.policy.CheckChecksum {
		if protocol.ChecksumIEEE(payload) != header.Checksum() {
			return nil, v.reject(&RejectError{Reason: ReasonChecksumMismatch, Domain: v.policy.Domain}, recordFor(header))
		}
	}

	// Step 7: parse TLVs, enforce domain-range + registry size per TLV.
	views, perr := protocol.ParseTLVs(payload)
	if perr != nil {
		return nil, v.reject(classifyTLVError(v.policy.Domain, perr), recordFor(header))
	}
	if rerr := v.domainVal.ValidateMessageStructure(views); rerr != nil {
		return nil, v.reject(rerr, recordFor(header))
	}
	if len(v.policy.RequiredTLVTypes) > 0 {
		if rerr := checkRequiredTLVs(v.policy.Domain, views, v.policy.RequiredTLVTypes); rerr != nil {
			return nil, v.reject(rerr, recordFor(header))
		}
	}

	// Step 8: Audit-only timestamp skew + sequence-gap observation.
	if v.policy.Level == Audit {
		if v.policy.MaxTimestampSkewNs > 0 {
			if rerr := checkTimestampSkew(v.policy.Domain, v.now(), header.TimestampNs(), v.policy.MaxTimestampSkewNs); rerr != nil {
				return nil, v.reject(rerr, recordFor(header))
			}
		}
		if v.policy.EnforceSequenceGapLimit && v.seq != nil {
			gap, detected := v.seq.Observe(header.SourceType(), header.Sequence(), header.TimestampNs(), v.policy.MaxSequenceGap)
			if detected {
				v.log.WithFields(logrus.Fields{
					"source_type": header.SourceType(),
					"sequence":    header.Sequence(),
					"gap":         gap,
				}).Warn("validate: sequence gap observed (not rejecting)")
			}
		}
	}

	rec := recordFor(header)
	rec.Decision = Accept
	rec.LatencyNs = v.now().Sub(start).Nanoseconds()
	v.observe(rec)

	return &ValidatedMessage{Header: header, Payload: payload}, nil
}

func (v *Validator) reject(rerr *RejectError, rec Record) *RejectError {
	rec.Decision = Reject
	rec.Reason = rerr.Reason
	v.observe(rec)
	return rerr
}

func (v *Validator) observe(rec Record) {
	if v.policy.Level != Audit || v.policy.AuditLogSink == nil {
		return
	}
	// Non-blocking by contract (§6): Observer implementations are required
	// to never block the caller; we do not add our own buffering here.
	v.policy.AuditLogSink.Observe(rec)
}

func recordFor(header protocol.HeaderView) Record {
	return Record{
		FrameID:     ids.New(),
		SourceType:  header.SourceType(),
		Sequence:    header.Sequence(),
		TimestampNs: header.TimestampNs(),
	}
}

func classifyHeaderError(err error) *RejectError {
	switch {
	case errors.Is(err, protocol.ErrTooShort):
		return &RejectError{Reason: ReasonTooShort}
	case errors.Is(err, protocol.ErrBadMagic):
		return &RejectError{Reason: ReasonBadMagic}
	case errors.Is(err, protocol.ErrUnsupportedVersion):
		return &RejectError{Reason: ReasonUnsupportedVersion}
	default:
		return &RejectError{Reason: ReasonTooShort, UnderlyingErr: err}
	}
}

func classifyTLVError(domain protocol.RelayDomain, err error) *RejectError {
	return &RejectError{Reason: ReasonTLVSizeMismatch, Domain: domain, UnderlyingErr: err}
}

func checkRequiredTLVs(domain protocol.RelayDomain, views []protocol.TLVView, required []uint8) *RejectError {
	present := make(map[uint8]bool, len(views))
	for _, v := range views {
		if v.Type <= 0xFF {
			present[uint8(v.Type)] = true
		}
	}
	for _, req := range required {
		if !present[req] {
			return &RejectError{Reason: ReasonMissingRequiredTLV, Domain: domain, TLVType: req, HasTLVType: true}
		}
	}
	return nil
}

func checkTimestampSkew(domain protocol.RelayDomain, now time.Time, timestampNs uint64, maxSkewNs uint64) *RejectError {
	nowNs := uint64(now.UnixNano())
	var skew uint64
	if nowNs > timestampNs {
		skew = nowNs - timestampNs
	} else {
		skew = timestampNs - nowNs
	}
	if skew > maxSkewNs {
		return &RejectError{
			Reason: ReasonTimestampSkew, Domain: domain,
			Expected: sizeString(int(maxSkewNs)), Actual: sizeString(int(skew)),
		}
	}
	return nil
}

func sizeString(n int) string {
	return strconv.Itoa(n)
}
