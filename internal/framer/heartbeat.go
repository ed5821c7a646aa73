package framer

import "github.com/shopspring/decimal"

// millisPerSecond is used to convert a FIX HeartBtInt (whole seconds) to
// the millisecond arithmetic the Clock deals in, via decimal rather than
// float64 so a fractional-looking config value never drifts the way it
// would accumulating float64 multiplications tick after tick.
var millisPerSecond = decimal.NewFromInt(1000)

func heartbeatIntervalMs(heartbeatIntervalS int) int64 {
	return decimal.NewFromInt(int64(heartbeatIntervalS)).Mul(millisPerSecond).IntPart()
}

// checkHeartbeats is step (e) of DoWork (spec.md §4.1): library timeouts
// first (they reclaim connections into GatewaySessions), then a pass
// over remaining engine-owned sessions to keep their heartbeat
// bookkeeping current. Actually sending/receiving FIX heartbeat bytes on
// the wire is session-layer behaviour outside this module's scope
// (spec.md §1); the Framer only maintains the schedule.
func (f *Framer) checkHeartbeats() {
	now := f.clock.NowMillis()

	for _, lib := range f.libraries.TimedOut(now, f.config.ReplyTimeoutMs) {
		f.reclaimLibrary(lib, now)
	}

	for _, gs := range f.gatewaySessions.All() {
		if gs.NeedsHeartbeat(now) {
			gs.ArmHeartbeat(now)
		}
	}
}

// reclaimLibrary implements spec.md §4.4: remove the library, publish
// LibraryTimeout, and transfer every owned connection back into
// GatewaySessions with the direction-dependent state mapping.
func (f *Framer) reclaimLibrary(lib *Library, now int64) {
	f.libraries.Remove(lib.LibraryID)
	f.metrics.LibraryTimedOut()

	for _, connectionID := range lib.ConnectionIDs() {
		entry, ok := f.connections[connectionID]
		if !ok {
			continue
		}

		var state GatewaySessionState
		if entry.direction == DirectionInitiator && entry.loggedOn {
			state = SessionActive
		} else {
			state = SessionConnected
		}

		gs := f.gatewaySessions.Acquire(
			connectionID, entry.sessionID, entry.sessionKey,
			entry.direction, state,
			0, 0, 0, "", "",
			lib.LibraryID,
		)
		// Resolved Open Question (spec.md §9): reclaimed sessions restart
		// their heartbeat schedule from the moment of reclaim.
		gs.ArmHeartbeat(now)
		entry.libraryID = EngineLibraryID
	}

	if pos := f.bus.SaveLibraryTimeout(lib.LibraryID, 0); pos.IsBackpressured() {
		f.metrics.PublicationBackpressured("LibraryTimeout")
		f.pendingLibraryTimeouts = append(f.pendingLibraryTimeouts, lib.LibraryID)
	}
}

// retryBackpressured is step (f) of DoWork: re-attempt publications that
// a prior tick could not commit because the bus was full. Only
// LibraryTimeout notifications need this outside the command dispatcher
// (spec.md §4.5) — in-flight command retries are driven by the command
// dispatcher re-delivering ActionAbort records, not by this step.
func (f *Framer) retryBackpressured() int {
	if len(f.pendingLibraryTimeouts) == 0 {
		return 0
	}

	remaining := f.pendingLibraryTimeouts[:0]
	retried := 0
	for _, libraryID := range f.pendingLibraryTimeouts {
		retried++
		if pos := f.bus.SaveLibraryTimeout(libraryID, 0); pos.IsBackpressured() {
			remaining = append(remaining, libraryID)
		}
	}
	f.pendingLibraryTimeouts = remaining
	return retried
}
