package framer

import (
	"net"
	"strconv"
)

// dispatch presents a single command to its handler, per spec.md §4.2.
// Any command from a library it already knows about counts as a
// heartbeat, the same as an explicit LibraryConnect re-send.
func (f *Framer) dispatch(cmd Command) Action {
	f.libraries.Heartbeat(commandLibraryID(cmd), f.clock.NowMillis())

	switch c := cmd.(type) {
	case LibraryConnectCommand:
		f.metrics.CommandProcessed("LibraryConnect")
		return f.onLibraryConnect(c)
	case InitiateConnectionCommand:
		f.metrics.CommandProcessed("InitiateConnection")
		return f.onInitiateConnection(c)
	case ReleaseSessionCommand:
		f.metrics.CommandProcessed("ReleaseSession")
		return f.onReleaseSession(c)
	case RequestSessionCommand:
		f.metrics.CommandProcessed("RequestSession")
		return f.onRequestSession(c)
	case DisconnectCommand:
		f.metrics.CommandProcessed("Disconnect")
		return f.onDisconnect(c)
	default:
		// Unknown command kind: consume it rather than jam the queue.
		return ActionContinue
	}
}

// onLibraryConnect implements spec.md §4.2 LibraryConnect, including the
// LIBRARY_NOTIFICATION logon replay: a newly connecting library is told
// about every session the engine currently retains (not just ones it
// previously owned), one SaveLogon per session, resumable across
// back-pressure the same way onInitiateConnection resumes its stages.
func (f *Framer) onLibraryConnect(cmd LibraryConnectCommand) Action {
	state, exists := f.libraryConnectReplies[cmd.CorrelationID]
	if !exists {
		state = &libraryConnectState{stage: stageLCConnect}
		f.libraryConnectReplies[cmd.CorrelationID] = state
	}

	if state.stage == stageLCConnect {
		now := f.clock.NowMillis()
		_, isNew := f.libraries.Connect(cmd.LibraryID, cmd.AeronSessionID, now)
		f.metrics.LibraryConnected(isNew)
		state.isNew = isNew

		if !isNew {
			// Duplicate connect: re-send ControlNotification of currently
			// handed-off sessions, no session notification replay needed.
			state.sessions = nil
			state.stage = stageLCDuplicateControlNotify
		} else {
			if pos := f.bus.SaveApplicationHeartbeat(cmd.LibraryID); pos.IsBackpressured() {
				f.metrics.PublicationBackpressured("ApplicationHeartbeat")
				f.libraries.Remove(cmd.LibraryID)
				delete(f.libraryConnectReplies, cmd.CorrelationID)
				return ActionAbort
			}
			state.sessions = f.gatewaySessions.All()
			state.stage = stageLCSessionNotify
		}
	}

	if state.stage == stageLCSessionNotify {
		for state.sessionIndex < len(state.sessions) {
			gs := state.sessions[state.sessionIndex]
			if !gs.IsActive() {
				state.sessionIndex++
				continue
			}
			pos := f.bus.SaveLogon(
				cmd.LibraryID, gs.ConnectionID, gs.SessionID, gs.LastSentSeq, gs.LastRecvSeq,
				gs.CompositeKey.SenderCompID, "", "", gs.CompositeKey.TargetCompID,
				gs.Username, gs.Password, LogonLibraryNotification,
			)
			if pos.IsBackpressured() {
				f.metrics.PublicationBackpressured("Logon")
				return ActionAbort
			}
			state.sessionIndex++
		}
		state.stage = stageLCControlNotify
	}

	if state.stage == stageLCControlNotify {
		if reclaimed := f.gatewaySessions.PreviouslyOwnedBy(cmd.LibraryID); len(reclaimed) > 0 {
			if pos := f.bus.SaveControlNotification(cmd.LibraryID, reclaimed); pos.IsBackpressured() {
				f.metrics.PublicationBackpressured("ControlNotification")
				return ActionAbort
			}
		}
		delete(f.libraryConnectReplies, cmd.CorrelationID)
		return ActionContinue
	}

	if state.stage == stageLCDuplicateControlNotify {
		lib, _ := f.libraries.Get(cmd.LibraryID)
		var sessions []SessionInfo
		if lib != nil {
			sessions = lib.Sessions()
		}
		if pos := f.bus.SaveControlNotification(cmd.LibraryID, sessions); pos.IsBackpressured() {
			f.metrics.PublicationBackpressured("ControlNotification")
			return ActionAbort
		}
		delete(f.libraryConnectReplies, cmd.CorrelationID)
		return ActionContinue
	}

	delete(f.libraryConnectReplies, cmd.CorrelationID)
	return ActionContinue
}

// onInitiateConnection implements spec.md §4.2 InitiateConnection,
// including the two-stage retry machinery of §4.5.
func (f *Framer) onInitiateConnection(cmd InitiateConnectionCommand) Action {
	lib, ok := f.libraries.Get(cmd.LibraryID)
	if !ok {
		f.bus.SaveError(ErrorUnknownLibrary, cmd.LibraryID, cmd.CorrelationID, errUnknownLibrary(cmd.LibraryID).Error())
		return ActionContinue
	}

	state, exists := f.initiateReplies[cmd.CorrelationID]
	if !exists {
		state = &initiateReplyState{stage: stageDial}
		f.initiateReplies[cmd.CorrelationID] = state
	}

	if state.stage == stageDial {
		state.address = net.JoinHostPort(cmd.Host, strconv.Itoa(cmd.Port))
		pending, err := f.channels.Connect(state.address)
		if err != nil {
			f.bus.SaveError(ErrorUnableToConnect, cmd.LibraryID, cmd.CorrelationID, err.Error())
			delete(f.initiateReplies, cmd.CorrelationID)
			return ActionContinue
		}
		state.pending = pending
		state.stage = stageAwaitDial
	}

	if state.stage == stageAwaitDial {
		conn, err := state.pending.PollConnect()
		if err != nil {
			f.bus.SaveError(ErrorUnableToConnect, cmd.LibraryID, cmd.CorrelationID, err.Error())
			delete(f.initiateReplies, cmd.CorrelationID)
			return ActionContinue
		}
		if conn == nil {
			// Dial still in flight; re-deliver next tick without
			// suspending this one (spec.md §4.2/§5).
			return ActionAbort
		}

		sessionID := f.sessionIdentityStore.OnLogon(cmd.compositeKey())
		if sessionID == SessionIDDuplicate {
			_ = conn.Close()
			f.bus.SaveError(ErrorDuplicateSession, cmd.LibraryID, cmd.CorrelationID, "duplicate session")
			delete(f.initiateReplies, cmd.CorrelationID)
			return ActionContinue
		}

		state.conn = conn
		state.connectionID = f.allocConnectionID()
		state.sessionID = sessionID
		state.pending = nil
		state.stage = stageSaveManageConnection
	}

	if state.stage == stageSaveManageConnection {
		pos := f.bus.SaveManageConnection(
			state.connectionID, state.sessionID, state.address, cmd.LibraryID,
			DirectionInitiator, 0, 0, SessionConnecting, cmd.HeartbeatIntervalS,
		)
		if pos.IsBackpressured() {
			f.metrics.PublicationBackpressured("ManageConnection")
			return ActionAbort
		}
		state.stage = stageSaveLogon
	}

	if state.stage == stageSaveLogon {
		pos := f.bus.SaveLogon(
			cmd.LibraryID, state.connectionID, state.sessionID, 0, 0,
			cmd.SenderCompID, cmd.SenderSubID, cmd.SenderLocationID, cmd.TargetCompID,
			cmd.Username, cmd.Password, LogonNew,
		)
		if pos.IsBackpressured() {
			f.metrics.PublicationBackpressured("Logon")
			return ActionAbort
		}
		state.stage = stageDone
	}

	receiver := f.endpointFactory.ReceiverEndpoint(
		state.conn, state.connectionID, state.sessionID, cmd.LibraryID, f,
		noopSequenceIndex{}, noopSequenceIndex{}, f.gatewaySessions, cmd.compositeKey(),
	)
	sender := f.endpointFactory.SenderEndpoint(state.conn, state.connectionID, cmd.LibraryID, f)

	f.connections[state.connectionID] = &connectionEntry{
		connectionID: state.connectionID,
		receiver:     receiver,
		sender:       sender,
		libraryID:    cmd.LibraryID,
		direction:    DirectionInitiator,
		loggedOn:     true,
		sessionKey:   cmd.compositeKey(),
		sessionID:    state.sessionID,
	}
	f.connectionOrder = append(f.connectionOrder, state.connectionID)
	lib.AddConnection(SessionInfo{
		SessionID:    state.sessionID,
		ConnectionID: state.connectionID,
		CompositeKey: cmd.compositeKey(),
	})

	delete(f.initiateReplies, cmd.CorrelationID)
	return ActionContinue
}

// onReleaseSession implements spec.md §4.2 ReleaseSession.
func (f *Framer) onReleaseSession(cmd ReleaseSessionCommand) Action {
	entry, ok := f.connections[cmd.ConnectionID]
	if !ok {
		f.bus.SaveError(ErrorUnknownLibrary, cmd.LibraryID, cmd.CorrelationID, errUnknownConnection(cmd.ConnectionID).Error())
		return ActionContinue
	}

	if lib, ok := f.libraries.Get(cmd.LibraryID); ok {
		lib.RemoveConnection(cmd.ConnectionID)
	}

	gs := f.gatewaySessions.Acquire(
		cmd.ConnectionID, entry.sessionID, entry.sessionKey,
		entry.direction, SessionActive,
		cmd.HeartbeatIntervalS, cmd.LastSentSeq, cmd.LastRecvSeq,
		cmd.Username, cmd.Password,
		cmd.LibraryID,
	)
	gs.ArmHeartbeat(f.clock.NowMillis())
	entry.libraryID = EngineLibraryID

	if pos := f.bus.SaveReleaseSessionReply(ReplyOK, cmd.CorrelationID); pos.IsBackpressured() {
		f.metrics.PublicationBackpressured("ReleaseSessionReply")
		// The session is already re-acquired by the engine; retrying is
		// idempotent (spec.md §4.2).
		return ActionAbort
	}
	return ActionContinue
}

// onRequestSession implements spec.md §4.2 RequestSession.
func (f *Framer) onRequestSession(cmd RequestSessionCommand) Action {
	lib, ok := f.libraries.Get(cmd.LibraryID)
	if !ok {
		f.bus.SaveError(ErrorUnknownLibrary, cmd.LibraryID, cmd.CorrelationID, errUnknownLibrary(cmd.LibraryID).Error())
		return ActionContinue
	}

	gs, ok := f.gatewaySessions.BySessionID(cmd.SessionID)
	if !ok {
		f.bus.SaveRequestSessionReply(ReplyUnknownSession, cmd.CorrelationID)
		return ActionContinue
	}
	if !gs.IsActive() {
		f.bus.SaveRequestSessionReply(ReplySessionNotActive, cmd.CorrelationID)
		return ActionContinue
	}

	if pos := f.bus.SaveRequestSessionReply(ReplyOK, cmd.CorrelationID); pos.IsBackpressured() {
		f.metrics.PublicationBackpressured("RequestSessionReply")
		return ActionAbort
	}

	f.gatewaySessions.Remove(gs.ConnectionID)
	lib.AddConnection(SessionInfo{
		SessionID:    gs.SessionID,
		ConnectionID: gs.ConnectionID,
		CompositeKey: gs.CompositeKey,
	})
	if entry, ok := f.connections[gs.ConnectionID]; ok {
		entry.libraryID = cmd.LibraryID
	}

	if cmd.LastReceivedSeq != NoMessageReplay {
		_ = f.replayQuery.ScheduleReplay(cmd.LibraryID, gs.SessionID, gs.ConnectionID, cmd.LastReceivedSeq)
	}

	return ActionContinue
}

// onDisconnect implements spec.md §4.2 Disconnect.
func (f *Framer) onDisconnect(cmd DisconnectCommand) Action {
	f.disconnectInternal(cmd.ConnectionID, cmd.Reason)
	return ActionContinue
}

