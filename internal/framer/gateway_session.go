package framer

// NoPreviousLibrary marks a GatewaySession that has never been owned by
// any library — as opposed to EngineLibraryID, which is a valid library
// identifier (the engine itself) and so cannot double as "none".
const NoPreviousLibrary int32 = -1

// GatewaySession is a FIX session currently retained by the engine
// rather than handed off to a library: either newly accepted and not
// yet authenticated, or reclaimed from a timed-out or released library.
type GatewaySession struct {
	ConnectionID int64
	SessionID    int64
	CompositeKey CompositeKey
	Direction    Direction
	State        GatewaySessionState

	HeartbeatIntervalS int
	LastHeartbeatRecvMs int64
	LastHeartbeatSentMs int64

	LastSentSeq int
	LastRecvSeq int

	Username string
	Password string

	// PreviousLibraryID records the library that owned this session
	// before it was reclaimed by a timeout or released back to the
	// engine via ReleaseSession, so a reconnecting library can
	// be told about sessions it used to hold (spec.md §4.2 LibraryConnect).
	PreviousLibraryID int32
}

// IsActive reports whether the session has completed authentication and
// is eligible to be handed out to a library via RequestSession.
func (s *GatewaySession) IsActive() bool {
	return s.State == SessionActive
}

// ArmHeartbeat resets the session's heartbeat schedule to start counting
// from now. Used when an accepted session's Logon is parsed, when a
// session is released back to the engine, when a due heartbeat is
// rescheduled, and, per the resolved Open Question in spec.md §9,
// whenever a session is reclaimed from a timed-out library — reclaimed
// sessions get a fresh heartbeat window rather than inheriting the stale
// one from before the timeout.
func (s *GatewaySession) ArmHeartbeat(nowMs int64) {
	s.LastHeartbeatRecvMs = nowMs
	s.LastHeartbeatSentMs = nowMs
}

// NeedsHeartbeat reports whether a full heartbeat interval has elapsed
// since the last one was sent. A session with an unknown interval
// (HeartbeatIntervalS <= 0, true before Logon is parsed) never needs one.
func (s *GatewaySession) NeedsHeartbeat(nowMs int64) bool {
	if s.HeartbeatIntervalS <= 0 {
		return false
	}
	return nowMs-s.LastHeartbeatSentMs >= heartbeatIntervalMs(s.HeartbeatIntervalS)
}
