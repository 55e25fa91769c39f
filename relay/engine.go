// Package relay implements the Unix-domain-socket fan-out service of §4.4:
// it accepts producer and consumer connections, validates each inbound
// frame under its domain policy, and broadcasts accepted frames to every
// connected consumer with drop-head backpressure.
package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"torq.dev/core/metrics"
	"torq.dev/core/validate"
)

// Engine runs a single-domain relay (§4.4, §3.5).
type Engine struct {
	cfg       Config
	validator *validate.Validator
	listener  *net.UnixListener
	log       *logrus.Logger
	counters  Counters

	mu        sync.RWMutex
	consumers map[string]*consumerSession

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Create validates config, builds the domain validator, and binds the
// listening socket at config.SocketPath. A path occupied by a stale
// socket is unlinked and rebound; a path occupied by a live listener
// fails fast with ErrSocketInUse (§4.4).
func Create(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := validate.New(cfg.Policy, cfg.logger())
	if err != nil {
		return nil, err
	}
	if err := bindCheck(cfg.SocketPath); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("relay: resolve socket path: %w", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("relay: bind socket: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		validator: v,
		listener:  ln,
		log:       cfg.logger(),
		consumers: make(map[string]*consumerSession),
		done:      make(chan struct{}),
	}, nil
}

// bindCheck unlinks a stale socket file at path, or reports ErrSocketInUse
// if a peer is actually listening there.
func bindCheck(path string) error {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("relay: stat socket path: %w", err)
	}
	conn, dialErr := net.Dial("unix", path)
	if dialErr == nil {
		_ = conn.Close()
		return ErrSocketInUse
	}
	return os.Remove(path)
}

// Counters returns a snapshot of this relay's running counters (§3.5).
func (e *Engine) Counters() CounterSnapshot { return e.counters.Snapshot() }

// Start enters the accept loop. It returns when ctx is canceled or
// Shutdown is called; the returned error is nil on clean shutdown.
func (e *Engine) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			e.Shutdown()
		case <-e.done:
		}
	}()

	for {
		conn, err := e.listener.AcceptUnix()
		if err != nil {
			select {
			case <-e.done:
				e.wg.Wait()
				return nil
			default:
				return fmt.Errorf("relay: accept: %w", err)
			}
		}
		e.wg.Add(1)
		go e.handleConn(conn)
	}
}

// Shutdown signals the accept loop, closes every consumer session, and
// unlinks the socket file (§4.4 "shutdown()").
func (e *Engine) Shutdown() {
	e.closeOnce.Do(func() {
		close(e.done)
		_ = e.listener.Close()

		e.mu.Lock()
		for id, cs := range e.consumers {
			cs.close()
			delete(e.consumers, id)
		}
		e.mu.Unlock()

		_ = os.Remove(e.cfg.SocketPath)
	})
}

func (e *Engine) handleConn(conn *net.UnixConn) {
	defer e.wg.Done()

	role, err := readRoleTag(conn, e.cfg.handshakeTimeout())
	if err != nil {
		e.log.WithError(err).Debug("relay: handshake failed, dropping connection")
		_ = conn.Close()
		return
	}

	var wg sync.WaitGroup
	switch role {
	case roleProducer:
		defer conn.Close()
		e.runProducer(conn)
	case roleConsumer:
		e.runConsumer(conn) // closes conn itself via consumerSession.close
	case roleBidirectional:
		wg.Add(2)
		go func() { defer wg.Done(); e.runProducer(producerHalf{conn}) }()
		go func() { defer wg.Done(); e.runConsumer(conn) }()
		wg.Wait()
	}
}

// producerHalf lets a bidirectional connection run the producer reader
// loop without the consumer loop's close also tearing down the conn out
// from under it; Close is a no-op and the real conn is closed once, by
// the consumer side's session teardown.
type producerHalf struct {
	net.Conn
}

func (producerHalf) Close() error { return nil }

func (e *Engine) runProducer(conn net.Conn) {
	domain := e.cfg.Domain.String()
	// Shutdown closes the connection so the blocking read below returns and
	// Start's wait on connection handlers can complete.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-e.done:
			_ = conn.Close()
		case <-stop:
		}
	}()
	r := bufio.NewReader(conn)
	for {
		frame, err := readFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.log.WithError(err).Debug("relay: producer disconnected")
			}
			return
		}
		e.counters.bytesIn.Add(uint64(len(frame)))
		metrics.BytesIn(domain, len(frame))

		_, rerr := e.validator.Validate(frame)
		if rerr != nil {
			e.counters.framesRejected.Add(1)
			metrics.FrameRejected(domain, rerr.Reason.String())
			e.log.WithFields(logrus.Fields{"domain": domain, "reason": rerr.Reason}).Debug("relay: frame rejected")
			continue
		}
		e.counters.framesAccepted.Add(1)
		metrics.FrameAccepted(domain)
		e.broadcast(frame)
	}
}

func (e *Engine) broadcast(frame []byte) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, cs := range e.consumers {
		cs.deliver(frame)
	}
}

func (e *Engine) runConsumer(conn net.Conn) {
	domain := e.cfg.Domain.String()
	cs := newConsumerSession(conn, domain, e.cfg.queueCapacity(), e.cfg.writeSoftTimeout(), e.log, &e.counters)

	e.mu.Lock()
	e.consumers[cs.id] = cs
	e.mu.Unlock()
	e.counters.consumersActive.Add(1)
	metrics.ConsumerConnected(domain, 1)

	defer func() {
		e.mu.Lock()
		delete(e.consumers, cs.id)
		e.mu.Unlock()
		e.counters.consumersActive.Add(-1)
		metrics.ConsumerConnected(domain, -1)
		cs.close()
	}()

	if err := cs.runWriter(); err != nil {
		e.log.WithError(err).WithField("consumer_id", cs.id).Debug("relay: consumer disconnected")
	}
}
