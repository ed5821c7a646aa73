package framer

// GatewaySessions is the registry of sessions currently owned by the
// engine. It is only ever touched from the Framer's single thread, so it
// carries no locking of its own (spec.md §5).
type GatewaySessions struct {
	byConnectionID map[int64]*GatewaySession
	bySessionID    map[int64]*GatewaySession
}

func NewGatewaySessions() *GatewaySessions {
	return &GatewaySessions{
		byConnectionID: make(map[int64]*GatewaySession),
		bySessionID:    make(map[int64]*GatewaySession),
	}
}

// Acquire creates or replaces the engine's record of a session. It is
// used on initial accept (state CONNECTED, heartbeat interval unknown),
// on ReleaseSession (state ACTIVE), and when reclaiming connections from
// a timed-out library.
func (g *GatewaySessions) Acquire(
	connectionID, sessionID int64,
	key CompositeKey,
	direction Direction,
	state GatewaySessionState,
	heartbeatIntervalS int,
	lastSentSeq, lastRecvSeq int,
	username, password string,
	previousLibraryID int32,
) *GatewaySession {
	gs := &GatewaySession{
		ConnectionID:       connectionID,
		SessionID:          sessionID,
		CompositeKey:       key,
		Direction:          direction,
		State:              state,
		HeartbeatIntervalS: heartbeatIntervalS,
		LastSentSeq:        lastSentSeq,
		LastRecvSeq:        lastRecvSeq,
		Username:           username,
		Password:           password,
		PreviousLibraryID:  previousLibraryID,
	}
	g.byConnectionID[connectionID] = gs
	if sessionID != SessionIDMissing {
		g.bySessionID[sessionID] = gs
	}
	return gs
}

// Remove drops a session from the engine's registry — called when it is
// handed off to a library (RequestSession) or the connection disconnects.
func (g *GatewaySessions) Remove(connectionID int64) {
	gs, ok := g.byConnectionID[connectionID]
	if !ok {
		return
	}
	delete(g.byConnectionID, connectionID)
	if gs.SessionID != SessionIDMissing {
		delete(g.bySessionID, gs.SessionID)
	}
}

func (g *GatewaySessions) ByConnectionID(connectionID int64) (*GatewaySession, bool) {
	gs, ok := g.byConnectionID[connectionID]
	return gs, ok
}

func (g *GatewaySessions) BySessionID(sessionID int64) (*GatewaySession, bool) {
	gs, ok := g.bySessionID[sessionID]
	return gs, ok
}

// SetSessionID rebinds a session's index entry after the session id
// becomes known post-accept (logon parsed after the connection was
// created with an as-yet-unknown session id).
func (g *GatewaySessions) SetSessionID(connectionID, sessionID int64) {
	gs, ok := g.byConnectionID[connectionID]
	if !ok {
		return
	}
	if gs.SessionID != SessionIDMissing {
		delete(g.bySessionID, gs.SessionID)
	}
	gs.SessionID = sessionID
	g.bySessionID[sessionID] = gs
}

// All returns every session currently retained by the engine. The
// returned slice is a snapshot copy so callers may mutate the registry
// (e.g. Remove) while iterating.
func (g *GatewaySessions) All() []*GatewaySession {
	out := make([]*GatewaySession, 0, len(g.byConnectionID))
	for _, gs := range g.byConnectionID {
		out = append(out, gs)
	}
	return out
}

func (g *GatewaySessions) Len() int {
	return len(g.byConnectionID)
}

// PreviouslyOwnedBy returns every engine-retained session that used to
// belong to the given library, for the reconnect branch of LibraryConnect.
func (g *GatewaySessions) PreviouslyOwnedBy(libraryID int32) []SessionInfo {
	var out []SessionInfo
	for _, gs := range g.byConnectionID {
		if gs.PreviousLibraryID == libraryID {
			out = append(out, SessionInfo{
				SessionID:    gs.SessionID,
				ConnectionID: gs.ConnectionID,
				CompositeKey: gs.CompositeKey,
			})
		}
	}
	return out
}
