package framer

// SessionIDMissing is the initial reserved value a SessionIdentityStore
// returns when a composite key has never been seen before assignment
// logic runs — spec.md §6 calls this out as the reserved MISSING
// sentinel. In practice OnLogon never returns it; it exists so the
// persistence store's zero value is unambiguous.
const SessionIDMissing int64 = -1

// SessionIDDuplicate is returned by OnLogon when the composite key is
// already bound to a session that is concurrently active elsewhere,
// signalling that the caller must reject the connection rather than
// mint a new session id.
const SessionIDDuplicate int64 = -2

// SessionIdentityStore deduplicates sessions by composite key. It is an
// external collaborator (spec.md §1) backed by durable storage outside
// this module; the Framer calls OnLogon when a session logs on and
// Release when its connection is torn down.
type SessionIdentityStore interface {
	OnLogon(key CompositeKey) int64
	Release(sessionID int64)
}
