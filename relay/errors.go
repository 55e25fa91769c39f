package relay

import "errors"

// ErrSocketInUse is returned by Create when config.SocketPath already names a
// live socket owned by another process (§4.4 "fail fast").
var ErrSocketInUse = errors.New("relay: socket path is in use by a live listener")

// ErrUnknownRoleTag is returned when a peer's handshake byte is not one of
// the three defined role tags (§4.4).
var ErrUnknownRoleTag = errors.New("relay: unrecognized role tag")

// ErrShuttingDown names the relay's shutting-down state; no function in
// this package returns it.
var ErrShuttingDown = errors.New("relay: shutting down")

type configError struct{ msg string }

func (e *configError) Error() string { return "relay: " + e.msg }

func newConfigError(msg string) error { return &configError{msg: msg} }
