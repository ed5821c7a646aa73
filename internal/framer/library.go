package framer

// Library is a connected external process that owns zero or more FIX
// sessions for application logic. Its identity survives reconnects; the
// aeron session id changes per physical connection to the command bus.
type Library struct {
	LibraryID      int32
	AeronSessionID int32
	LastHeartbeatMs int64

	ownedConnections map[int64]struct{}
	// ownedSessions tracks the SessionInfo for connections this library
	// currently holds, so a duplicate LibraryConnect or a ControlNotification
	// re-send can describe them without consulting GatewaySessions (which by
	// definition does not hold library-owned sessions).
	ownedSessions map[int64]SessionInfo
}

func newLibrary(libraryID, aeronSessionID int32, nowMs int64) *Library {
	return &Library{
		LibraryID:        libraryID,
		AeronSessionID:   aeronSessionID,
		LastHeartbeatMs:  nowMs,
		ownedConnections: make(map[int64]struct{}),
		ownedSessions:    make(map[int64]SessionInfo),
	}
}

func (l *Library) AddConnection(info SessionInfo) {
	l.ownedConnections[info.ConnectionID] = struct{}{}
	l.ownedSessions[info.ConnectionID] = info
}

func (l *Library) RemoveConnection(connectionID int64) {
	delete(l.ownedConnections, connectionID)
	delete(l.ownedSessions, connectionID)
}

func (l *Library) OwnsConnection(connectionID int64) bool {
	_, ok := l.ownedConnections[connectionID]
	return ok
}

// Sessions returns the SessionInfo for every connection this library
// currently holds — the payload of a ControlNotification.
func (l *Library) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, len(l.ownedSessions))
	for _, info := range l.ownedSessions {
		out = append(out, info)
	}
	return out
}

func (l *Library) ConnectionIDs() []int64 {
	out := make([]int64, 0, len(l.ownedConnections))
	for id := range l.ownedConnections {
		out = append(out, id)
	}
	return out
}
