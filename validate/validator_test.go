package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torq.dev/core/builder"
	"torq.dev/core/protocol"
)

func mustValidator(t *testing.T, policy Policy) *Validator {
	t.Helper()
	v, err := New(policy, nil)
	require.NoError(t, err)
	return v
}

func TestMinimumValidFramePerformanceRelay(t *testing.T) {
	// Scenario 1: payload_length=0, delivered to a Performance relay.
	wire, err := protocol.Build(protocol.HeaderFields{RelayDomain: protocol.DomainMarketData}, nil)
	require.NoError(t, err)
	v := mustValidator(t, DefaultPolicy(protocol.DomainMarketData, Performance))

	msg, rerr := v.Validate(wire)
	require.Nil(t, rerr)
	assert.Equal(t, protocol.HeaderSize, len(msg.Header.Bytes()))
	assert.Empty(t, msg.Payload)
}

func TestStandardTLVScenario(t *testing.T) {
	wire, err := builder.New(protocol.DomainMarketData, 1).
		AddTLV(2, []byte{0, 1, 2, 3, 4, 5, 6, 7}).
		Build(1, uint64(time.Now().UnixNano()))
	require.NoError(t, err)
	assert.Equal(t, 42, len(wire))

	v := mustValidator(t, DefaultPolicy(protocol.DomainMarketData, Performance))
	msg, rerr := v.Validate(wire)
	require.Nil(t, rerr)
	found, ok, err := protocol.FindTLV(msg.Payload, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, found)
}

func TestExtendedTLVAuditAcceptsWithRequiredType(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 0x55
	}
	wire, err := builder.New(protocol.DomainExecution, 1).
		AddTLV(41, payload).
		Build(1, uint64(time.Now().UnixNano()))
	require.NoError(t, err)

	policy := DefaultPolicy(protocol.DomainExecution, Audit)
	policy.RequiredTLVTypes = []uint8{41}
	v := mustValidator(t, policy)

	_, rerr := v.Validate(wire)
	assert.Nil(t, rerr)
}

func TestDomainMismatchRejected(t *testing.T) {
	// Scenario 4: relay_domain=Signal containing tlv_type=45 (Execution range).
	wire, err := protocol.Build(
		protocol.HeaderFields{RelayDomain: protocol.DomainSignal},
		[]protocol.TLV{{Type: 45, Payload: []byte{1, 2, 3, 4}}},
	)
	require.NoError(t, err)

	v := mustValidator(t, DefaultPolicy(protocol.DomainSignal, Standard))
	_, rerr := v.Validate(wire)
	require.NotNil(t, rerr)
	assert.Equal(t, ReasonTLVDomainMismatch, rerr.Reason)
	assert.Equal(t, uint8(45), rerr.TLVType)
}

func TestCorruptChecksumScenario(t *testing.T) {
	// Scenario 5: single flipped payload byte passes Performance (CRC skipped)
	// but fails Standard with ChecksumMismatch.
	wire, err := builder.New(protocol.DomainMarketData, 1).
		AddTLV(2, []byte{0xAA}).
		Build(1, 1)
	require.NoError(t, err)
	corrupt := append([]byte(nil), wire...)
	corrupt[len(corrupt)-1] ^= 0x01 // flip a payload byte

	perf := mustValidator(t, DefaultPolicy(protocol.DomainMarketData, Performance))
	_, rerr := perf.Validate(corrupt)
	assert.Nil(t, rerr)

	std := mustValidator(t, DefaultPolicy(protocol.DomainMarketData, Standard))
	_, rerr = std.Validate(corrupt)
	require.NotNil(t, rerr)
	assert.Equal(t, ReasonChecksumMismatch, rerr.Reason)
}

func TestPayloadTooLargeRejected(t *testing.T) {
	policy := DefaultPolicy(protocol.DomainMarketData, Performance)
	policy.MaxPayloadBytes = 16
	v := mustValidator(t, policy)

	wire, err := protocol.Build(protocol.HeaderFields{RelayDomain: protocol.DomainMarketData}, []protocol.TLV{
		{Type: 3, Payload: make([]byte, 32)},
	})
	require.NoError(t, err)
	_, rerr := v.Validate(wire)
	require.NotNil(t, rerr)
	assert.Equal(t, ReasonPayloadTooLarge, rerr.Reason)
}

func TestEmptyPayloadAcceptedWithoutRequiredTLVs(t *testing.T) {
	wire, err := protocol.Build(protocol.HeaderFields{RelayDomain: protocol.DomainExecution}, nil)
	require.NoError(t, err)
	v := mustValidator(t, DefaultPolicy(protocol.DomainExecution, Audit))
	_, rerr := v.Validate(wire)
	assert.Nil(t, rerr)
}

func TestEmptyPayloadRejectedWhenRequiredTLVConfigured(t *testing.T) {
	wire, err := protocol.Build(protocol.HeaderFields{RelayDomain: protocol.DomainExecution}, nil)
	require.NoError(t, err)
	policy := DefaultPolicy(protocol.DomainExecution, Audit)
	policy.RequiredTLVTypes = []uint8{41}
	v := mustValidator(t, policy)
	_, rerr := v.Validate(wire)
	require.NotNil(t, rerr)
	assert.Equal(t, ReasonMissingRequiredTLV, rerr.Reason)
}

func TestSequenceGapIsObservedNotRejected(t *testing.T) {
	policy := DefaultPolicy(protocol.DomainExecution, Audit)
	v := mustValidator(t, policy)

	first, err := builder.New(protocol.DomainExecution, 9).AddTLV(44, make([]byte, 16)).Build(1, 1)
	require.NoError(t, err)
	_, rerr := v.Validate(first)
	require.Nil(t, rerr)

	// Sequence jumps from 1 to 10: a large gap, but still accepted (§4.3, §9).
	second, err := builder.New(protocol.DomainExecution, 9).AddTLV(44, make([]byte, 16)).Build(10, 2)
	require.NoError(t, err)
	_, rerr = v.Validate(second)
	assert.Nil(t, rerr)
}

func TestTimestampSkewRejected(t *testing.T) {
	policy := DefaultPolicy(protocol.DomainExecution, Audit)
	policy.MaxTimestampSkewNs = uint64(time.Second)
	v := mustValidator(t, policy)

	staleTimestamp := uint64(time.Now().Add(-time.Hour).UnixNano())
	wire, err := protocol.Build(protocol.HeaderFields{
		RelayDomain: protocol.DomainExecution,
		TimestampNs: staleTimestamp,
		Sequence:    1,
	}, nil)
	require.NoError(t, err)

	_, rerr := v.Validate(wire)
	require.NotNil(t, rerr)
	assert.Equal(t, ReasonTimestampSkew, rerr.Reason)
}

func TestObserverReceivesAcceptAndRejectRecords(t *testing.T) {
	var records []Record
	policy := DefaultPolicy(protocol.DomainExecution, Audit)
	policy.AuditLogSink = ObserverFunc(func(r Record) { records = append(records, r) })
	v := mustValidator(t, policy)

	ok, err := protocol.Build(protocol.HeaderFields{RelayDomain: protocol.DomainExecution, Sequence: 1}, nil)
	require.NoError(t, err)
	_, rerr := v.Validate(ok)
	require.Nil(t, rerr)

	bad, err := protocol.Build(protocol.HeaderFields{RelayDomain: protocol.DomainSignal, Sequence: 2}, nil)
	require.NoError(t, err)
	_, rerr = v.Validate(bad)
	require.NotNil(t, rerr)

	require.Len(t, records, 2)
	assert.Equal(t, Accept, records[0].Decision)
	assert.Equal(t, Reject, records[1].Decision)
	assert.Equal(t, ReasonDomainMismatch, records[1].Reason)
}

func TestNewRejectsUnknownDomain(t *testing.T) {
	_, err := New(Policy{Domain: 9, MaxPayloadBytes: 100}, nil)
	assert.Error(t, err)
}

func TestNewRejectsSequenceGapLimitOutsideAudit(t *testing.T) {
	policy := DefaultPolicy(protocol.DomainMarketData, Performance)
	policy.EnforceSequenceGapLimit = true
	_, err := New(policy, nil)
	assert.Error(t, err)
}
