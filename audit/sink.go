package audit

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"torq.dev/core/validate"
)

// defaultQueueCapacity bounds the sink's internal buffer between the
// validator's hot path and the bbolt writer goroutine.
const defaultQueueCapacity = 1024

// Sink adapts a Store to validate.Observer. It never blocks the caller:
// a full internal queue causes the record to be dropped and counted,
// never the frame (§6 "slow observers drop records, not frames").
type Sink struct {
	store   *Store
	queue   chan validate.Record
	log     *logrus.Logger
	dropped atomic.Uint64
	done    chan struct{}
}

// NewSink starts a background writer goroutine that drains records into
// store. Call Close to stop it and flush the goroutine's exit.
func NewSink(store *Store, log *logrus.Logger) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Sink{
		store: store,
		queue: make(chan validate.Record, defaultQueueCapacity),
		log:   log,
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Observe implements validate.Observer. It never blocks: a full queue
// drops the record and increments the drop counter.
func (s *Sink) Observe(rec validate.Record) {
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

// Close stops the writer goroutine after draining whatever is already queued.
func (s *Sink) Close() {
	close(s.queue)
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for rec := range s.queue {
		if err := s.store.Put(rec); err != nil {
			s.log.WithError(err).WithField("frame_id", rec.FrameID).Warn("audit: failed to persist record")
		}
	}
}
