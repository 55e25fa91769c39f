package validate

import "sync"

// sourceState is the last-observed sequence/timestamp for one source_type.
type sourceState struct {
	lastSeq       uint64
	lastTimestamp uint64
	seen          bool
}

// sequenceTracker is Audit-only state: a map from source_type to the last
// sequence seen, under a short critical section (§4.3 "State machine").
// Unlike the teacher's BanScore (node/p2p/banscore.go), there is no decay
// and no threshold that disconnects anything — spec.md §4.3/§9 is explicit
// that gaps are observed, not enforced.
type sequenceTracker struct {
	mu      sync.Mutex
	bySource map[uint16]*sourceState
}

func newSequenceTracker() *sequenceTracker {
	return &sequenceTracker{bySource: make(map[uint16]*sourceState)}
}

// Observe records (sequence, timestampNs) for sourceType and reports
// whether a gap larger than maxGap was detected. The very first frame from
// a source never counts as a gap.
func (t *sequenceTracker) Observe(sourceType uint16, sequence, timestampNs, maxGap uint64) (gap uint64, gapDetected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.bySource[sourceType]
	if !ok {
		st = &sourceState{}
		t.bySource[sourceType] = st
	}
	if st.seen && sequence > st.lastSeq+1 {
		gap = sequence - st.lastSeq - 1
		if gap > maxGap {
			gapDetected = true
		}
	}
	st.lastSeq = sequence
	st.lastTimestamp = timestampNs
	st.seen = true
	return gap, gapDetected
}
