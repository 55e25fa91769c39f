package audit

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"torq.dev/core/validate"
)

var bucketRecords = []byte("records")

// recordValueSize is the fixed encoded width of one validate.Record, keyed
// separately by its FrameID (§6: "{frame_id, decision, source_type,
// sequence, timestamp_ns, latency_ns}").
const recordValueSize = 1 + 1 + 2 + 8 + 8 + 8

// Store persists Audit-mode decision records to a local bbolt database for
// offline review. It is not on the frame-forwarding path: the relay never
// blocks waiting on a Store write (§6 "Non-goals: persistent message
// storage" — this stores decisions about frames, never the frames
// themselves).
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if absent) a bbolt database at path under dir.
func OpenStore(dir string) (*Store, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	path := dir + "/records.db"
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit: open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put persists one decision record under rec.FrameID.
func (s *Store) Put(rec validate.Record) error {
	val := encodeRecord(rec)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put([]byte(rec.FrameID), val)
	})
}

// Get retrieves the record stored under frameID, if any.
func (s *Store) Get(frameID string) (validate.Record, bool, error) {
	var out validate.Record
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRecords).Get([]byte(frameID))
		if v == nil {
			return nil
		}
		rec, err := decodeRecord(frameID, v)
		if err != nil {
			return err
		}
		out, ok = rec, true
		return nil
	})
	return out, ok, err
}

// Count returns the number of persisted records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

func encodeRecord(rec validate.Record) []byte {
	out := make([]byte, recordValueSize)
	out[0] = byte(rec.Decision)
	out[1] = byte(rec.Reason)
	binary.LittleEndian.PutUint16(out[2:4], rec.SourceType)
	binary.LittleEndian.PutUint64(out[4:12], rec.Sequence)
	binary.LittleEndian.PutUint64(out[12:20], rec.TimestampNs)
	binary.LittleEndian.PutUint64(out[20:28], uint64(rec.LatencyNs))
	return out
}

func decodeRecord(frameID string, b []byte) (validate.Record, error) {
	if len(b) != recordValueSize {
		return validate.Record{}, fmt.Errorf("audit: corrupt record for %s: want %d bytes, got %d", frameID, recordValueSize, len(b))
	}
	return validate.Record{
		FrameID:     frameID,
		Decision:    validate.Decision(b[0]),
		Reason:      validate.RejectReason(b[1]),
		SourceType:  binary.LittleEndian.Uint16(b[2:4]),
		Sequence:    binary.LittleEndian.Uint64(b[4:12]),
		TimestampNs: binary.LittleEndian.Uint64(b[12:20]),
		LatencyNs:   int64(binary.LittleEndian.Uint64(b[20:28])),
	}, nil
}
