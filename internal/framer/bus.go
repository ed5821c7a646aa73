package framer

// Position is the commit position returned by a successful publication.
// A negative value means the publish was rejected because the
// downstream buffer is full (Backpressured), never a hard error: the
// caller must retry the identical publication later.
type Position int64

// Backpressured is returned by PublicationBus methods when the
// downstream buffer has no room. It is a soft failure (spec.md §7): the
// originating command handler must return ActionAbort so the dispatcher
// re-delivers the command on the next tick.
const Backpressured Position = -1

func (p Position) IsBackpressured() bool { return p < 0 }

// PublicationBus is the append-only channel to downstream consumers
// (connected libraries and the replicated log). It is logically shared
// with other producers; the Framer never assumes exclusive access to it
// and treats every negative return as transient.
type PublicationBus interface {
	SaveManageConnection(
		connectionID, sessionID int64,
		address string,
		libraryID int32,
		direction Direction,
		lastSentSeq, lastRecvSeq int,
		state GatewaySessionState,
		heartbeatIntervalS int,
	) Position

	SaveLogon(
		libraryID int32,
		connectionID, sessionID int64,
		sentSeq, recvSeq int,
		senderCompID, senderSubID, senderLocationID, targetCompID string,
		username, password string,
		status LogonStatus,
	) Position

	SaveError(kind GatewayErrorKind, libraryID int32, replyToCorrelationID int64, message string) Position

	SaveReleaseSessionReply(status SessionReplyStatus, correlationID int64) Position

	SaveRequestSessionReply(status SessionReplyStatus, correlationID int64) Position

	SaveApplicationHeartbeat(libraryID int32) Position

	SaveControlNotification(libraryID int32, sessions []SessionInfo) Position

	SaveLibraryTimeout(libraryID int32, reserved int64) Position
}
