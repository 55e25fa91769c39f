package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torq.dev/core/protocol"
)

func TestDomainFor_ranges(t *testing.T) {
	cases := []struct {
		tlvType uint8
		domain  protocol.RelayDomain
		valid   bool
	}{
		{0, 0, false},
		{1, protocol.DomainMarketData, true},
		{19, protocol.DomainMarketData, true},
		{20, protocol.DomainSignal, true},
		{39, protocol.DomainSignal, true},
		{40, protocol.DomainExecution, true},
		{79, protocol.DomainExecution, true},
		{80, protocol.DomainSystem, true},
		{99, protocol.DomainSystem, true},
		{100, 0, false},
		{255, 0, false},
	}
	for _, c := range cases {
		domain, valid := DomainFor(c.tlvType)
		assert.Equalf(t, c.valid, valid, "tlv_type=%d", c.tlvType)
		if c.valid {
			assert.Equalf(t, c.domain, domain, "tlv_type=%d", c.tlvType)
		}
	}
}

func TestDomainIsolation(t *testing.T) {
	// Testable property (spec §8): for every type in [1,99] and every
	// domain, IsInDomain(t, d) holds iff DomainFor(t) == d.
	domains := []protocol.RelayDomain{
		protocol.DomainMarketData,
		protocol.DomainSignal,
		protocol.DomainExecution,
		protocol.DomainSystem,
	}
	for tlvType := 1; tlvType <= 99; tlvType++ {
		owner, ok := DomainFor(uint8(tlvType))
		require.True(t, ok)
		for _, d := range domains {
			assert.Equal(t, owner == d, IsInDomain(uint8(tlvType), d))
		}
	}
}

func TestExpectedSizeCheck(t *testing.T) {
	fixed := Fixed(8)
	assert.NoError(t, fixed.Check(8))
	assert.Error(t, fixed.Check(7))

	bounded := Bounded(16)
	assert.NoError(t, bounded.Check(0))
	assert.NoError(t, bounded.Check(16))
	assert.Error(t, bounded.Check(17))

	assert.NoError(t, Variable().Check(0))
	assert.NoError(t, Variable().Check(99999))
}

func TestLookupUnregisteredType(t *testing.T) {
	_, ok := Lookup(19) // in-range (MarketData) but not registered above
	assert.False(t, ok)
	assert.Equal(t, Variable(), ExpectedSizeFor(19))
}
