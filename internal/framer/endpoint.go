package framer

import "net"

// SequenceNumberIndex is the narrow read interface onto the replicated
// sequence-number index (owned by the log subsystem, out of scope here;
// spec.md §1). The Framer only ever threads it through to endpoint
// construction.
type SequenceNumberIndex interface {
	LastKnownSequenceNumber(sessionID int64) int
}

// ReceiverEndpoint is the per-connection inbound byte pump: it frames
// FIX messages off the wire (length prefix, then SOH-delimited tail) and
// notifies the Framer via callbacks. PollBytes must do bounded work —
// at most one read syscall's worth of framing per call — so a single
// slow connection cannot starve the others in a tick (spec.md §4.1).
type ReceiverEndpoint interface {
	ConnectionID() int64
	LibraryID() int32
	PollBytes() (bytesRead int, err error)
	Close(reason DisconnectReason)
}

// SenderEndpoint is the per-connection outbound byte pump: callers
// Enqueue framed bytes and the endpoint drains them to the socket across
// possibly many PollDrain calls when the kernel send buffer is full.
type SenderEndpoint interface {
	ConnectionID() int64
	LibraryID() int32
	Enqueue(frame []byte) Position
	PollDrain() (drained bool, err error)
	Close()
}

// EndpointFactory constructs the paired endpoints around an accepted or
// initiated TCP channel. The framerRef parameter is the callback handle
// (spec.md §9 "Design Notes": model the Framer back-reference as an
// opaque callback, never a strong cycle) an endpoint uses to report
// logons and socket failures back to the owning Framer.
type EndpointFactory interface {
	ReceiverEndpoint(
		channel net.Conn,
		connectionID, sessionID int64,
		libraryID int32,
		framerRef FramerCallbacks,
		sentSeqIndex, recvSeqIndex SequenceNumberIndex,
		sessions *GatewaySessions,
		sessionKey CompositeKey,
	) ReceiverEndpoint

	SenderEndpoint(
		channel net.Conn,
		connectionID int64,
		libraryID int32,
		framerRef FramerCallbacks,
	) SenderEndpoint

	InboundPublication() PublicationBus
}

// FramerCallbacks is the narrow surface endpoints call back into. Kept
// as an interface rather than a *Framer pointer so an endpoint's
// dependency on the Framer is a contract, not a concrete cyclic type.
type FramerCallbacks interface {
	OnLogonReceived(connectionID int64, key CompositeKey, heartbeatIntervalS int)
	OnEndpointError(connectionID int64, err error)
}
