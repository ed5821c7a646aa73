package framer

import "net"

// initiateStage tracks how far an in-flight InitiateConnection has
// gotten, so re-delivery after a Backpressured publication (or a dial
// still in flight) skips already-succeeded work (spec.md §4.5).
type initiateStage int

const (
	stageDial initiateStage = iota
	stageAwaitDial
	stageSaveManageConnection
	stageSaveLogon
	stageDone
)

// initiateReplyState is the per-correlation-id retry record for
// InitiateConnection. It is created on the first attempt and discarded
// once the command reaches ActionContinue.
type initiateReplyState struct {
	stage initiateStage

	pending      PendingConnect
	conn         net.Conn
	connectionID int64
	sessionID    int64
	address      string
}

// libraryConnectStage tracks how far an in-flight LibraryConnect has
// gotten notifying the connecting library, so re-delivery after a
// Backpressured publication resumes instead of restarting.
type libraryConnectStage int

const (
	stageLCConnect libraryConnectStage = iota
	stageLCSessionNotify
	stageLCControlNotify
	stageLCDuplicateControlNotify
	stageLCDone
)

// libraryConnectState is the per-correlation-id retry record for
// LibraryConnect. isNew and sessions are captured once, at stageLCConnect,
// so a retried notification loop sees a stable snapshot rather than one
// that drifts as new sessions arrive mid-retry.
type libraryConnectState struct {
	stage libraryConnectStage

	isNew        bool
	sessions     []*GatewaySession
	sessionIndex int
}
