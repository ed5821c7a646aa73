package framer

// OnLogonReceived implements FramerCallbacks. A ReceiverEndpoint calls
// this once it has parsed a Logon body off the wire, giving the Framer
// the composite key and heartbeat interval it could not know at accept
// time (spec.md §4.3 step 3: "heartbeat interval 0 (unknown until Logon
// is parsed)").
func (f *Framer) OnLogonReceived(connectionID int64, key CompositeKey, heartbeatIntervalS int) {
	entry, ok := f.connections[connectionID]
	if !ok {
		return
	}
	entry.loggedOn = true
	entry.sessionKey = key

	sessionID := f.sessionIdentityStore.OnLogon(key)
	if sessionID == SessionIDDuplicate {
		f.bus.SaveError(ErrorDuplicateSession, entry.libraryID, 0, "duplicate session on inbound logon")
		f.disconnectInternal(connectionID, DisconnectApplicationDisconnect)
		return
	}
	entry.sessionID = sessionID

	if gs, ok := f.gatewaySessions.ByConnectionID(connectionID); ok {
		f.gatewaySessions.SetSessionID(connectionID, sessionID)
		gs.HeartbeatIntervalS = heartbeatIntervalS
		gs.State = SessionActive
		gs.ArmHeartbeat(f.clock.NowMillis())
	}
}

// OnEndpointError implements FramerCallbacks. A ReceiverEndpoint or
// SenderEndpoint calls this after a socket-level failure it cannot
// recover from; the Framer disconnects the connection and reports the
// hard failure (spec.md §7).
func (f *Framer) OnEndpointError(connectionID int64, err error) {
	f.errorHandler.OnError(err)
	f.disconnectInternal(connectionID, DisconnectException)
}

// disconnectInternal is the shared teardown path used both by the
// Disconnect command and by endpoint-reported errors. It is idempotent:
// disconnecting an already-removed connection is a no-op.
func (f *Framer) disconnectInternal(connectionID int64, reason DisconnectReason) {
	entry, ok := f.connections[connectionID]
	if !ok {
		return
	}
	if entry.sender != nil {
		entry.sender.Close()
	}
	if entry.receiver != nil {
		entry.receiver.Close(reason)
	}
	delete(f.connections, connectionID)
	f.removeFromOrder(connectionID)

	if lib, ok := f.libraries.Get(entry.libraryID); ok {
		lib.RemoveConnection(connectionID)
	}
	f.gatewaySessions.Remove(connectionID)

	if entry.sessionID != 0 || entry.loggedOn {
		f.sessionIdentityStore.Release(entry.sessionID)
	}
}
