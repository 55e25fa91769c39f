package relay

import (
	"time"

	"github.com/sirupsen/logrus"

	"torq.dev/core/protocol"
	"torq.dev/core/validate"
)

const (
	// DefaultQueueCapacity is the per-consumer outbound queue depth (§4.4).
	DefaultQueueCapacity = 4096

	// DefaultHandshakeTimeout bounds the role-tag read on connection accept (§4.4).
	DefaultHandshakeTimeout = 5 * time.Second

	// DefaultWriteSoftTimeout is the per-write budget before a consumer is
	// treated as slow and its queue becomes subject to drop-head (§6 "Timeouts").
	DefaultWriteSoftTimeout = 1 * time.Second
)

// Config describes one single-domain relay process (§4.4, §3.5).
type Config struct {
	// SocketPath is the Unix domain socket the relay listens on.
	SocketPath string

	// Domain is the relay_domain this process serves; exactly one per relay.
	Domain protocol.RelayDomain

	// Policy is handed to validate.New to build this relay's validator.
	Policy validate.Policy

	// QueueCapacity is the bounded per-consumer outbound queue depth.
	// Zero means DefaultQueueCapacity.
	QueueCapacity int

	// HandshakeTimeout bounds the role-tag read. Zero means DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// WriteSoftTimeout bounds one consumer write. Zero means DefaultWriteSoftTimeout.
	WriteSoftTimeout time.Duration

	// Logger receives lifecycle and connection events. Nil means logrus.StandardLogger().
	Logger *logrus.Logger
}

// DefaultConfig returns a Config for domain at level with
// validate.DefaultPolicy's per-domain preset (§3.4) and §4.4's default
// timing constants.
func DefaultConfig(socketPath string, domain protocol.RelayDomain, level validate.Level) Config {
	return Config{
		SocketPath:       socketPath,
		Domain:           domain,
		Policy:           validate.DefaultPolicy(domain, level),
		QueueCapacity:    DefaultQueueCapacity,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteSoftTimeout: DefaultWriteSoftTimeout,
	}
}

// Validate reports configuration errors that should prevent the relay from
// starting (exit code 2, §6).
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return newConfigError("socket_path must not be empty")
	}
	if !c.Domain.Valid() {
		return newConfigError("domain is not one of the four defined relay domains")
	}
	if c.Policy.Domain != c.Domain {
		return newConfigError("policy.Domain must match config.Domain")
	}
	return c.Policy.Validate()
}

func (c Config) queueCapacity() int {
	if c.QueueCapacity > 0 {
		return c.QueueCapacity
	}
	return DefaultQueueCapacity
}

func (c Config) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout > 0 {
		return c.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

func (c Config) writeSoftTimeout() time.Duration {
	if c.WriteSoftTimeout > 0 {
		return c.WriteSoftTimeout
	}
	return DefaultWriteSoftTimeout
}

func (c Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}
