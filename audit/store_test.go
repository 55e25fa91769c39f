package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torq.dev/core/validate"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	rec := validate.Record{
		FrameID:     "abc123",
		Decision:    validate.Reject,
		Reason:      validate.ReasonChecksumMismatch,
		SourceType:  7,
		Sequence:    42,
		TimestampNs: 1234567890,
		LatencyNs:   -5,
	}
	require.NoError(t, store.Put(rec))

	got, ok, err := store.Get("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestStoreGetMissingReturnsFalse(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreCount(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(validate.Record{FrameID: string(rune('a' + i))}))
	}
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
