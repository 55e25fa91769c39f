package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParseHeaderRoundTrip(t *testing.T) {
	fields := HeaderFields{
		RelayDomain: DomainMarketData,
		SourceType:  7,
		TimestampNs: 1_700_000_000_000_000_000,
		Sequence:    42,
	}
	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	hdr, err := BuildHeader(fields, payload)
	require.NoError(t, err)

	view, err := ParseHeader(hdr[:])
	require.NoError(t, err)
	assert.Equal(t, Magic, view.Magic())
	assert.Equal(t, Version, view.Version())
	assert.Equal(t, fields.RelayDomain, view.RelayDomain())
	assert.Equal(t, fields.SourceType, view.SourceType())
	assert.Equal(t, fields.TimestampNs, view.TimestampNs())
	assert.Equal(t, fields.Sequence, view.Sequence())
	assert.Equal(t, uint32(len(payload)), view.PayloadLength())
	assert.Equal(t, ChecksumIEEE(payload), view.Checksum())
}

func TestBuildHeaderDeterministic(t *testing.T) {
	fields := HeaderFields{RelayDomain: DomainSignal, SourceType: 3, TimestampNs: 5, Sequence: 9}
	payload := []byte("hello")
	a, err := BuildHeader(fields, payload)
	require.NoError(t, err)
	b, err := BuildHeader(fields, payload)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseHeaderTooShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, 31))
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestParseHeaderBadMagic(t *testing.T) {
	hdr, err := BuildHeader(HeaderFields{RelayDomain: DomainMarketData}, nil)
	require.NoError(t, err)
	corrupt := hdr
	corrupt[0] ^= 0xFF
	_, err = ParseHeader(corrupt[:])
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseHeaderUnsupportedVersion(t *testing.T) {
	hdr, err := BuildHeader(HeaderFields{RelayDomain: DomainMarketData}, nil)
	require.NoError(t, err)
	corrupt := hdr
	corrupt[4] = 3
	_, err = ParseHeader(corrupt[:])
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestBuildHeaderRejectsUnknownDomain(t *testing.T) {
	_, err := BuildHeader(HeaderFields{RelayDomain: 9}, nil)
	assert.Error(t, err)
}

func TestBuildHeaderRejectsOversizePayload(t *testing.T) {
	_, err := BuildHeader(HeaderFields{RelayDomain: DomainMarketData}, make([]byte, MaxPayloadBytes+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestChecksumSensitivity(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30, 0x40, 0x50}
	base := ChecksumIEEE(payload)
	for i := range payload {
		for bit := uint(0); bit < 8; bit++ {
			flipped := append([]byte(nil), payload...)
			flipped[i] ^= 1 << bit
			assert.NotEqualf(t, base, ChecksumIEEE(flipped), "byte %d bit %d", i, bit)
		}
	}
}

func TestMinimumValidFrameChecksum(t *testing.T) {
	// End-to-end scenario 1: payload_length=0 => checksum of empty slice is 0.
	assert.Equal(t, uint32(0x00000000), ChecksumIEEE(nil))
}
