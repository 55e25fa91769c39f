package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseTLVsRoundTrip(t *testing.T) {
	tlvs := []TLV{
		{Type: 2, Payload: []byte{0, 1, 2, 3, 4, 5, 6, 7}},
		{Type: 9, Payload: []byte("abc")},
	}
	payload, err := EncodeTLVs(tlvs)
	require.NoError(t, err)

	views, err := ParseTLVs(payload)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, uint16(2), views[0].Type)
	assert.Equal(t, tlvs[0].Payload, views[0].Payload)
	assert.Equal(t, uint16(9), views[1].Type)
	assert.Equal(t, tlvs[1].Payload, views[1].Payload)
}

func TestExtendedTLVRoundTrip(t *testing.T) {
	// Scenario 3: type=255 sentinel, extended_type=41, 300-byte payload.
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 0x55
	}
	tlvs := []TLV{{Type: 41, Payload: payload}}
	encoded, err := EncodeTLVs(tlvs)
	require.NoError(t, err)
	assert.Equal(t, extendedHeaderBytes+300, len(encoded))

	views, err := ParseTLVs(encoded)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint16(41), views[0].Type)
	assert.Equal(t, payload, views[0].Payload)
}

func TestStandardTLVUsesExtendedFormWhenPayloadOver255(t *testing.T) {
	tlvs := []TLV{{Type: 5, Payload: make([]byte, 256)}}
	encoded, err := EncodeTLVs(tlvs)
	require.NoError(t, err)
	assert.Equal(t, byte(ExtendedTypeSentinel), encoded[0])
}

func TestFindTLV(t *testing.T) {
	tlvs := []TLV{
		{Type: 1, Payload: []byte{0xAA}},
		{Type: 2, Payload: []byte{0, 1, 2, 3, 4, 5, 6, 7}},
	}
	payload, err := EncodeTLVs(tlvs)
	require.NoError(t, err)

	found, ok, err := FindTLV(payload, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, found)

	_, ok, err = FindTLV(payload, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseTLVsUnderrun(t *testing.T) {
	// Declares tlv_length=10 but only provides 3 bytes.
	malformed := []byte{7, 10, 1, 2, 3}
	_, err := ParseTLVs(malformed)
	assert.ErrorIs(t, err, ErrTlvUnderrun)
}

func TestParseTLVsOverrun(t *testing.T) {
	// A well-formed TLV followed by one trailing byte that can't form another.
	tlvs := []TLV{{Type: 1, Payload: []byte{0xAA}}}
	encoded, err := EncodeTLVs(tlvs)
	require.NoError(t, err)
	encoded = append(encoded, 0x00) // dangling byte: looks like tlv_type=0 with no length byte
	_, err = ParseTLVs(encoded)
	assert.Error(t, err)
}

func TestExtendedTLVReservedNonZero(t *testing.T) {
	malformed := []byte{ExtendedTypeSentinel, 1 /* should be 0 */, 0, 0, 0, 0}
	_, err := ParseTLVs(malformed)
	assert.ErrorIs(t, err, ErrExtendedReservedNonZero)
}

func TestTLVIteratorIsRestartable(t *testing.T) {
	tlvs := []TLV{{Type: 1, Payload: []byte{1}}, {Type: 2, Payload: []byte{2}}}
	payload, err := EncodeTLVs(tlvs)
	require.NoError(t, err)

	first := NewTLVIterator(payload)
	v1, ok, err := first.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(1), v1.Type)

	// A fresh iterator over the same buffer starts from the beginning again.
	second := NewTLVIterator(payload)
	v2, ok, err := second.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(1), v2.Type)
}
