// Package bus implements the Framer's PublicationBus contract on top of
// NATS JetStream: connect once, obtain a JetStreamContext, publish onto
// per-concern subjects. A bounded window of outstanding publish acks
// (MaxPendingPublishes) stands in for the Aeron log's back-pressure
// signalling in the system this module's contracts were distilled from.
package bus

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/fixgateway/internal/framer"
	"github.com/luxfi/log"
	"github.com/nats-io/nats.go"
)

// Subjects the bus publishes onto, one per PublicationBus operation.
const (
	SubjectManageConnection    = "fixgateway.manage_connection"
	SubjectLogon               = "fixgateway.logon"
	SubjectError               = "fixgateway.error"
	SubjectReleaseSessionReply = "fixgateway.release_session_reply"
	SubjectRequestSessionReply = "fixgateway.request_session_reply"
	SubjectApplicationHeartbeat = "fixgateway.application_heartbeat"
	SubjectControlNotification  = "fixgateway.control_notification"
	SubjectLibraryTimeout       = "fixgateway.library_timeout"
)

// MaxPendingPublishes bounds how many JetStream publish acks may be
// outstanding at once. publish never waits on an ack itself — it checks
// this count and reports Backpressured immediately once the window is
// full, the same "don't suspend the tick" contract AcceptNonBlocking and
// PollBytes hold for I/O (spec.md §5).
const MaxPendingPublishes = 4096

// NatsBus adapts a JetStream context to framer.PublicationBus.
type NatsBus struct {
	js     nats.JetStreamContext
	logger log.Logger
	seq    int64
}

// New connects to the given NATS URL, ensures the fixgateway stream
// exists, and returns a ready-to-use bus.
func New(natsURL, streamName string) (*NatsBus, error) {
	logger := log.Root().New("module", "publication_bus")

	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	bus := &NatsBus{logger: logger}
	js, err := nc.JetStream(
		nats.PublishAsyncMaxPending(MaxPendingPublishes),
		nats.PublishAsyncErrHandler(func(_ nats.JetStream, msg *nats.Msg, err error) {
			bus.logger.Warn("publish rejected", "subject", msg.Subject, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	bus.js = js

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"fixgateway.>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		logger.Error("failed to ensure fixgateway stream", "error", err)
	}

	return bus, nil
}

// publish hands the payload to JetStream's async publisher and returns
// immediately, never waiting on the ack: the calling Framer tick must
// not suspend on I/O (spec.md §5). Back-pressure is signalled up front
// by checking the outstanding-ack count instead of blocking to find out
// whether the stream accepted the message; asynchronous rejections are
// logged by the PublishAsyncErrHandler installed in New, not surfaced
// as Backpressured after the fact, matching Aeron's own "the caller
// learns about back-pressure at offer time, not later" contract.
func (b *NatsBus) publish(subject string, payload any) framer.Position {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal publication", "subject", subject, "error", err)
		return framer.Backpressured
	}

	if pending := b.js.PublishAsyncPending(); pending >= MaxPendingPublishes {
		b.logger.Warn("publish backpressured", "subject", subject, "pending", pending)
		return framer.Backpressured
	}

	if _, err := b.js.PublishAsync(subject, data); err != nil {
		b.logger.Warn("publish rejected", "subject", subject, "error", err)
		return framer.Backpressured
	}

	return framer.Position(atomic.AddInt64(&b.seq, 1))
}

type manageConnectionMsg struct {
	ConnectionID       int64                     `json:"connection_id"`
	SessionID          int64                     `json:"session_id"`
	Address            string                    `json:"address"`
	LibraryID          int32                     `json:"library_id"`
	Direction          string                    `json:"direction"`
	LastSentSeq        int                       `json:"last_sent_seq"`
	LastRecvSeq        int                       `json:"last_recv_seq"`
	State              string                    `json:"state"`
	HeartbeatIntervalS int                       `json:"heartbeat_interval_s"`
}

func (b *NatsBus) SaveManageConnection(
	connectionID, sessionID int64,
	address string,
	libraryID int32,
	direction framer.Direction,
	lastSentSeq, lastRecvSeq int,
	state framer.GatewaySessionState,
	heartbeatIntervalS int,
) framer.Position {
	return b.publish(SubjectManageConnection, manageConnectionMsg{
		ConnectionID: connectionID, SessionID: sessionID, Address: address,
		LibraryID: libraryID, Direction: direction.String(),
		LastSentSeq: lastSentSeq, LastRecvSeq: lastRecvSeq,
		State: state.String(), HeartbeatIntervalS: heartbeatIntervalS,
	})
}

type logonMsg struct {
	LibraryID         int32  `json:"library_id"`
	ConnectionID      int64  `json:"connection_id"`
	SessionID         int64  `json:"session_id"`
	SentSeq           int    `json:"sent_seq"`
	RecvSeq           int    `json:"recv_seq"`
	SenderCompID      string `json:"sender_comp_id"`
	SenderSubID       string `json:"sender_sub_id"`
	SenderLocationID  string `json:"sender_location_id"`
	TargetCompID      string `json:"target_comp_id"`
	Username          string `json:"username"`
	Status            string `json:"status"`
}

func (b *NatsBus) SaveLogon(
	libraryID int32,
	connectionID, sessionID int64,
	sentSeq, recvSeq int,
	senderCompID, senderSubID, senderLocationID, targetCompID string,
	username, password string,
	status framer.LogonStatus,
) framer.Position {
	statusStr := "NEW"
	if status == framer.LogonLibraryNotification {
		statusStr = "LIBRARY_NOTIFICATION"
	}
	return b.publish(SubjectLogon, logonMsg{
		LibraryID: libraryID, ConnectionID: connectionID, SessionID: sessionID,
		SentSeq: sentSeq, RecvSeq: recvSeq,
		SenderCompID: senderCompID, SenderSubID: senderSubID,
		SenderLocationID: senderLocationID, TargetCompID: targetCompID,
		Username: username, Status: statusStr,
	})
}

type errorMsg struct {
	Kind                 string `json:"kind"`
	LibraryID            int32  `json:"library_id"`
	ReplyToCorrelationID int64  `json:"reply_to_correlation_id"`
	Message              string `json:"message"`
	DiagnosticID         string `json:"diagnostic_id"`
}

// SaveError stamps every error publication with a fresh uuid so an
// operator can correlate the log line here with the same token carried
// in the downstream error message, without relying on
// ReplyToCorrelationID, which is 0 for errors that aren't a reply to
// any command (callbacks.go's duplicate inbound logon).
func (b *NatsBus) SaveError(kind framer.GatewayErrorKind, libraryID int32, replyToCorrelationID int64, message string) framer.Position {
	diagnosticID := uuid.NewString()
	b.logger.Warn("gateway error published",
		"diagnostic_id", diagnosticID, "kind", kind.String(),
		"library_id", libraryID, "message", message)
	return b.publish(SubjectError, errorMsg{
		Kind: kind.String(), LibraryID: libraryID,
		ReplyToCorrelationID: replyToCorrelationID, Message: message,
		DiagnosticID: diagnosticID,
	})
}

type replyMsg struct {
	Status        string `json:"status"`
	CorrelationID int64  `json:"correlation_id"`
}

func replyStatusString(status framer.SessionReplyStatus) string {
	switch status {
	case framer.ReplyOK:
		return "OK"
	case framer.ReplyUnknownSession:
		return "UNKNOWN_SESSION"
	case framer.ReplySessionNotActive:
		return "SESSION_NOT_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

func (b *NatsBus) SaveReleaseSessionReply(status framer.SessionReplyStatus, correlationID int64) framer.Position {
	return b.publish(SubjectReleaseSessionReply, replyMsg{Status: replyStatusString(status), CorrelationID: correlationID})
}

func (b *NatsBus) SaveRequestSessionReply(status framer.SessionReplyStatus, correlationID int64) framer.Position {
	return b.publish(SubjectRequestSessionReply, replyMsg{Status: replyStatusString(status), CorrelationID: correlationID})
}

type heartbeatMsg struct {
	LibraryID int32 `json:"library_id"`
}

func (b *NatsBus) SaveApplicationHeartbeat(libraryID int32) framer.Position {
	return b.publish(SubjectApplicationHeartbeat, heartbeatMsg{LibraryID: libraryID})
}

type controlNotificationMsg struct {
	LibraryID int32                `json:"library_id"`
	Sessions  []framer.SessionInfo `json:"sessions"`
}

func (b *NatsBus) SaveControlNotification(libraryID int32, sessions []framer.SessionInfo) framer.Position {
	return b.publish(SubjectControlNotification, controlNotificationMsg{LibraryID: libraryID, Sessions: sessions})
}

type libraryTimeoutMsg struct {
	LibraryID int32 `json:"library_id"`
	Reserved  int64 `json:"reserved"`
}

func (b *NatsBus) SaveLibraryTimeout(libraryID int32, reserved int64) framer.Position {
	return b.publish(SubjectLibraryTimeout, libraryTimeoutMsg{LibraryID: libraryID, Reserved: reserved})
}
