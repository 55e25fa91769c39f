// Package registry is the static, exhaustive TLV type table (C2): it
// decouples type semantics from the codec, giving O(1) lookup from a
// tlv_type to its owning domain and expected payload size (§4.2).
package registry

import (
	"fmt"

	"torq.dev/core/protocol"
)

// SizeKind classifies how a TLV type's payload size is constrained.
type SizeKind int

const (
	SizeVariable SizeKind = iota
	SizeFixed
	SizeBounded
)

// ExpectedSize describes the payload-size constraint for a TLV type.
type ExpectedSize struct {
	Kind  SizeKind
	Bytes int // meaningful when Kind != SizeVariable
}

func Fixed(n int) ExpectedSize   { return ExpectedSize{Kind: SizeFixed, Bytes: n} }
func Bounded(n int) ExpectedSize { return ExpectedSize{Kind: SizeBounded, Bytes: n} }
func Variable() ExpectedSize     { return ExpectedSize{Kind: SizeVariable} }

// Check validates payload against the expected size, returning an error
// describing the mismatch when it doesn't conform.
func (e ExpectedSize) Check(payloadLen int) error {
	switch e.Kind {
	case SizeFixed:
		if payloadLen != e.Bytes {
			return fmt.Errorf("registry: expected fixed size %d, got %d", e.Bytes, payloadLen)
		}
	case SizeBounded:
		if payloadLen > e.Bytes {
			return fmt.Errorf("registry: expected size <= %d, got %d", e.Bytes, payloadLen)
		}
	case SizeVariable:
		// no constraint
	}
	return nil
}

// Entry is one row of the TLV type registry.
type Entry struct {
	Type         uint8
	Name         string
	Domain       protocol.RelayDomain
	ExpectedSize ExpectedSize
}

// domain range bounds (§3.3, closed and disjoint).
const (
	marketDataLo, marketDataHi = 1, 19
	signalLo, signalHi         = 20, 39
	executionLo, executionHi   = 40, 79
	systemLo, systemHi         = 80, 99
)

// table is indexed by tlv_type for O(1) lookup; a zero Entry (Name=="")
// means the type is unregistered (but may still be Reserved/in-range).
var table [256]Entry

func register(t uint8, name string, domain protocol.RelayDomain, size ExpectedSize) {
	table[t] = Entry{Type: t, Name: name, Domain: domain, ExpectedSize: size}
}

func init() {
	// Market Data (1-19): representative entries from the trading domain.
	register(1, "Trade", protocol.DomainMarketData, Fixed(40))
	register(2, "Quote", protocol.DomainMarketData, Variable())
	register(3, "OrderBookDelta", protocol.DomainMarketData, Variable())
	register(4, "OrderBookSnapshot", protocol.DomainMarketData, Bounded(8192))
	register(5, "PoolSwap", protocol.DomainMarketData, Variable())
	register(6, "PoolSync", protocol.DomainMarketData, Fixed(64))
	register(7, "PoolMint", protocol.DomainMarketData, Variable())
	register(8, "PoolBurn", protocol.DomainMarketData, Variable())
	register(9, "InstrumentMeta", protocol.DomainMarketData, Bounded(256))

	// Signal (20-39): strategy-produced trading signals.
	register(20, "ArbitrageSignal", protocol.DomainSignal, Fixed(96))
	register(21, "SignalIdentity", protocol.DomainSignal, Fixed(16))
	register(22, "EconomicFields", protocol.DomainSignal, Fixed(48))
	register(23, "ExecutionAddress", protocol.DomainSignal, Variable())

	// Execution (40-79): order lifecycle.
	register(40, "OrderRequest", protocol.DomainExecution, Bounded(256))
	register(41, "OrderStatus", protocol.DomainExecution, Variable())
	register(42, "Fill", protocol.DomainExecution, Fixed(64))
	register(43, "ExecutionReport", protocol.DomainExecution, Bounded(512))
	register(44, "Cancel", protocol.DomainExecution, Fixed(16))

	// System (80-99): relay/process-internal control messages.
	register(80, "Heartbeat", protocol.DomainSystem, Fixed(8))
	register(81, "RelayStats", protocol.DomainSystem, Variable())
	register(82, "ConfigUpdate", protocol.DomainSystem, Variable())
}

// Lookup returns the registered entry for t, or false if t is unregistered.
func Lookup(t uint8) (Entry, bool) {
	e := table[t]
	if e.Name == "" {
		return Entry{}, false
	}
	return e, true
}

// DomainFor returns the domain t belongs to by its numeric range (§3.3),
// independent of whether t has a registered Entry. Types outside 1..=99
// are reserved and Valid()==false.
func DomainFor(t uint8) (domain protocol.RelayDomain, valid bool) {
	switch {
	case t >= marketDataLo && t <= marketDataHi:
		return protocol.DomainMarketData, true
	case t >= signalLo && t <= signalHi:
		return protocol.DomainSignal, true
	case t >= executionLo && t <= executionHi:
		return protocol.DomainExecution, true
	case t >= systemLo && t <= systemHi:
		return protocol.DomainSystem, true
	default:
		return 0, false
	}
}

// IsInDomain reports whether t's numeric range matches relayDomain (§3.3, §4.3 step 7).
func IsInDomain(t uint8, relayDomain protocol.RelayDomain) bool {
	d, ok := DomainFor(t)
	return ok && d == relayDomain
}

// ExpectedSizeFor returns the expected payload size for t. Unregistered
// types in a valid domain range are treated as Variable (no constraint
// beyond domain membership and the frame-level payload cap).
func ExpectedSizeFor(t uint8) ExpectedSize {
	if e, ok := Lookup(t); ok {
		return e.ExpectedSize
	}
	return Variable()
}
