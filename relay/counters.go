package relay

import "sync/atomic"

// Counters are the §3.5 per-relay-process counters: bytes in/out, frames
// accepted/rejected, and per-consumer drops. They have process lifetime
// and are reset only by restarting the relay.
type Counters struct {
	bytesIn         atomic.Uint64
	bytesOut        atomic.Uint64
	framesAccepted  atomic.Uint64
	framesRejected  atomic.Uint64
	consumerDrops   atomic.Uint64
	consumersActive atomic.Int64
}

// CounterSnapshot is a point-in-time copy of Counters, safe to read after
// the engine has moved on.
type CounterSnapshot struct {
	BytesIn         uint64
	BytesOut        uint64
	FramesAccepted  uint64
	FramesRejected  uint64
	ConsumerDrops   uint64
	ConsumersActive int64
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
		FramesAccepted:  c.framesAccepted.Load(),
		FramesRejected:  c.framesRejected.Load(),
		ConsumerDrops:   c.consumerDrops.Load(),
		ConsumersActive: c.consumersActive.Load(),
	}
}
