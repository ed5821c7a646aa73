package framer

// EngineLibraryID identifies connections currently owned by the engine
// itself rather than any connected library.
const EngineLibraryID int32 = 0

// NoMessageReplay is the sentinel last-received-sequence value meaning a
// RequestSession hand-off should not trigger a replay.
const NoMessageReplay int64 = -1

// AutomaticInitialSequenceNumber tells the session layer to pick the next
// outbound sequence number itself instead of the caller supplying one.
const AutomaticInitialSequenceNumber int = -1

// Direction is the role a Connection plays in the TCP handshake.
type Direction int

const (
	DirectionAcceptor Direction = iota
	DirectionInitiator
)

func (d Direction) String() string {
	if d == DirectionInitiator {
		return "INITIATOR"
	}
	return "ACCEPTOR"
}

// GatewaySessionState is the lifecycle state of a session owned by the
// engine (as opposed to a connected library).
type GatewaySessionState int

const (
	SessionConnecting GatewaySessionState = iota
	SessionConnected
	SessionActive
	SessionReleased
)

func (s GatewaySessionState) String() string {
	switch s {
	case SessionConnecting:
		return "CONNECTING"
	case SessionConnected:
		return "CONNECTED"
	case SessionActive:
		return "ACTIVE"
	case SessionReleased:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// LogonStatus distinguishes a fresh logon from a notification sent to a
// newly connecting library about a session the engine already holds.
type LogonStatus int

const (
	LogonNew LogonStatus = iota
	LogonLibraryNotification
)

// SessionReplyStatus is the outcome carried on ReleaseSessionReply and
// RequestSessionReply publications.
type SessionReplyStatus int

const (
	ReplyOK SessionReplyStatus = iota
	ReplyUnknownSession
	ReplySessionNotActive
)

// GatewayErrorKind enumerates the protocol errors surfaced to a library
// via SaveError (spec.md §7, "Protocol errors").
type GatewayErrorKind int

const (
	ErrorUnknownLibrary GatewayErrorKind = iota
	ErrorUnableToConnect
	ErrorDuplicateSession
)

func (k GatewayErrorKind) String() string {
	switch k {
	case ErrorUnknownLibrary:
		return "UNKNOWN_LIBRARY"
	case ErrorUnableToConnect:
		return "UNABLE_TO_CONNECT"
	case ErrorDuplicateSession:
		return "DUPLICATE_SESSION"
	default:
		return "UNKNOWN"
	}
}

// DisconnectReason explains why a connection's endpoints were closed.
type DisconnectReason int

const (
	DisconnectApplicationDisconnect DisconnectReason = iota
	DisconnectLibraryTimeout
	DisconnectRemoteClose
	DisconnectException
	DisconnectNotLeader
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectApplicationDisconnect:
		return "APPLICATION_DISCONNECT"
	case DisconnectLibraryTimeout:
		return "LIBRARY_TIMEOUT"
	case DisconnectRemoteClose:
		return "REMOTE_CLOSE"
	case DisconnectException:
		return "EXCEPTION"
	case DisconnectNotLeader:
		return "NOT_LEADER"
	default:
		return "UNKNOWN"
	}
}

// CompositeKey is the (SenderCompID, TargetCompID, Qualifier) triple that
// identifies a FIX session across reconnects.
type CompositeKey struct {
	SenderCompID string
	TargetCompID string
	Qualifier    string
}

// SessionInfo is the summary of a session handed off to, or previously
// owned by, a library — the payload of a ControlNotification.
type SessionInfo struct {
	SessionID    int64
	ConnectionID int64
	CompositeKey CompositeKey
}
