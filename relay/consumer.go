package relay

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"torq.dev/core/internal/ids"
	"torq.dev/core/metrics"
)

// consumerQueue is the bounded, drop-head outbound buffer of §4.4: on
// overflow the oldest enqueued frame is evicted to admit the newest.
type consumerQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      [][]byte
	capacity int
	closed   bool
}

func newConsumerQueue(capacity int) *consumerQueue {
	q := &consumerQueue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues frame, evicting the oldest entry first if the queue is at
// capacity. It reports whether an eviction occurred. push never blocks:
// producers must never be backpressured by a slow consumer (§4.4, §5).
func (q *consumerQueue) push(frame []byte) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if len(q.buf) >= q.capacity {
		q.buf = append(q.buf[:0], q.buf[1:]...)
		dropped = true
	}
	q.buf = append(q.buf, frame)
	q.cond.Signal()
	return dropped
}

// pop blocks until a frame is available or the queue is closed.
func (q *consumerQueue) pop() (frame []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.buf) == 0 {
		return nil, false
	}
	frame = q.buf[0]
	q.buf = q.buf[1:]
	return frame, true
}

func (q *consumerQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// consumerSession owns one accepted consumer connection: a dedicated
// writer goroutine drains its queue strictly FIFO and writes frames
// unchanged to the socket (§4.4, §5 "Ordering guarantees").
type consumerSession struct {
	id       string
	conn     net.Conn
	queue    *consumerQueue
	domain   string
	writeTO  time.Duration
	log      *logrus.Logger
	counters *Counters
}

func newConsumerSession(conn net.Conn, domain string, capacity int, writeTO time.Duration, log *logrus.Logger, counters *Counters) *consumerSession {
	return &consumerSession{
		id:       ids.New(),
		conn:     conn,
		queue:    newConsumerQueue(capacity),
		domain:   domain,
		writeTO:  writeTO,
		log:      log,
		counters: counters,
	}
}

// deliver hands frame to this consumer's queue, counting a drop-head
// eviction if one occurred.
func (cs *consumerSession) deliver(frame []byte) {
	if cs.queue.push(frame) {
		cs.counters.consumerDrops.Add(1)
		metrics.ConsumerDrop(cs.domain)
	}
}

// runWriter drains the queue and writes frames to the socket until the
// queue is closed or a genuine transport error occurs. A write that trips
// the soft timeout does not end the session (§5): the consumer is simply
// slow, so the frame is dropped like any other drop-head eviction and the
// writer keeps going. Session teardown is reserved for real transport
// errors (EOF, broken pipe). It owns the only goroutine that touches
// cs.conn for writing, so no further synchronization is needed.
func (cs *consumerSession) runWriter() error {
	w := bufio.NewWriter(cs.conn)
	for {
		frame, ok := cs.queue.pop()
		if !ok {
			return nil
		}
		if err := cs.writeFrame(w, frame); err != nil {
			if isTimeout(err) {
				// Discard whatever partial bytes are still buffered so the
				// next frame starts at a clean boundary on the wire.
				w.Reset(cs.conn)
				cs.counters.consumerDrops.Add(1)
				metrics.ConsumerDrop(cs.domain)
				continue
			}
			return err
		}
		cs.counters.bytesOut.Add(uint64(len(frame)))
		metrics.BytesOut(cs.domain, len(frame))
	}
}

func (cs *consumerSession) writeFrame(w *bufio.Writer, frame []byte) error {
	if err := cs.conn.SetWriteDeadline(time.Now().Add(cs.writeTO)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return w.Flush()
}

// isTimeout reports whether err is the soft write deadline tripping,
// rather than a genuine transport failure.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (cs *consumerSession) close() {
	cs.queue.close()
	_ = cs.conn.Close()
}
