// Package endpoint implements the per-connection byte pumps named in
// spec.md §6 (Endpoint Factory contract): a ReceiverEndpoint that frames
// FIX messages off a net.Conn (length prefix "9=…" then SOH-delimited
// tail) without parsing their bodies, and a SenderEndpoint that buffers
// and drains outbound bytes. Modeled on a client read/write pump pair,
// translated from a goroutine-per-connection model to the Framer's
// single-threaded poll model: PollBytes/PollDrain do one non-blocking
// read or write per call instead of blocking in a dedicated goroutine.
package endpoint

import (
	"bytes"
	"net"
	"time"

	"github.com/luxfi/fixgateway/internal/framer"
	"github.com/luxfi/log"
)

const (
	soh           = 0x01
	maxFrameBytes = 8192
)

// AuthStrategy authenticates the username/password carried on an
// inbound Logon. It is the narrow slice of internal/auth.Strategy this
// package depends on, kept local so endpoint never needs to import
// auth's bcrypt dependency directly.
type AuthStrategy interface {
	Authenticate(username, password string) bool
}

// Factory is the production framer.EndpointFactory.
type Factory struct {
	bus    framer.PublicationBus
	auth   AuthStrategy
	logger log.Logger
}

func NewFactory(bus framer.PublicationBus, auth AuthStrategy, logger log.Logger) *Factory {
	return &Factory{bus: bus, auth: auth, logger: logger}
}

func (f *Factory) InboundPublication() framer.PublicationBus { return f.bus }

func (f *Factory) ReceiverEndpoint(
	channel net.Conn,
	connectionID, sessionID int64,
	libraryID int32,
	framerRef framer.FramerCallbacks,
	sentSeqIndex, recvSeqIndex framer.SequenceNumberIndex,
	sessions *framer.GatewaySessions,
	sessionKey framer.CompositeKey,
) framer.ReceiverEndpoint {
	return &Receiver{
		conn:         channel,
		connectionID: connectionID,
		sessionID:    sessionID,
		libraryID:    libraryID,
		framerRef:    framerRef,
		sessionKey:   sessionKey,
		auth:         f.auth,
		logger:       f.logger,
		buf:          make([]byte, 0, maxFrameBytes),
		readBuf:      make([]byte, maxFrameBytes),
	}
}

func (f *Factory) SenderEndpoint(
	channel net.Conn,
	connectionID int64,
	libraryID int32,
	framerRef framer.FramerCallbacks,
) framer.SenderEndpoint {
	return &Sender{
		conn:         channel,
		connectionID: connectionID,
		libraryID:    libraryID,
		framerRef:    framerRef,
		logger:       f.logger,
	}
}

// Receiver parses length-prefixed, SOH-delimited FIX frames off a
// net.Conn and hands complete frame bodies onward, without decoding tag
// semantics beyond the header fields it needs to recognise a Logon.
type Receiver struct {
	conn         net.Conn
	connectionID int64
	sessionID    int64
	libraryID    int32
	framerRef    framer.FramerCallbacks
	sessionKey   framer.CompositeKey
	auth         AuthStrategy
	logger       log.Logger

	buf     []byte
	readBuf []byte
	closed  bool
}

func (r *Receiver) ConnectionID() int64 { return r.connectionID }
func (r *Receiver) LibraryID() int32    { return r.libraryID }

// PollBytes performs at most one non-blocking read and frames as many
// complete messages as that read yielded — bounded work per spec.md
// §4.1, since a single slow connection can never accumulate more than
// one read's worth of backlog before yielding the tick. The deadline is
// set to the current instant rather than a short future one: an
// already-past deadline makes Read return immediately with a timeout
// error when nothing is pending instead of waiting out a future
// deadline, which is the difference between a true poll and a short
// blocking read.
func (r *Receiver) PollBytes() (int, error) {
	if r.closed {
		return 0, nil
	}

	if err := r.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, err
	}
	n, err := r.conn.Read(r.readBuf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		if err.Error() == "EOF" {
			r.framerRef.OnEndpointError(r.connectionID, errConnectionClosed)
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	r.buf = append(r.buf, r.readBuf[:n]...)
	r.frameComplete()
	return n, nil
}

// frameComplete extracts every complete FIX message currently buffered
// (bounded by BodyLength, terminated by the checksum field) and inspects
// each one only far enough to notice a Logon (MsgType=A) header.
func (r *Receiver) frameComplete() {
	for {
		bodyLenIdx := bytes.Index(r.buf, []byte("9="))
		if bodyLenIdx < 0 {
			return
		}
		sohIdx := bytes.IndexByte(r.buf[bodyLenIdx:], soh)
		if sohIdx < 0 {
			return
		}
		lenStart := bodyLenIdx + 2
		lenEnd := bodyLenIdx + sohIdx
		bodyLen := parseInt(r.buf[lenStart:lenEnd])
		if bodyLen < 0 {
			// Malformed length prefix; drop the buffer to resynchronise.
			r.buf = r.buf[:0]
			return
		}

		bodyStart := bodyLenIdx + sohIdx + 1
		checksumFieldLen := 7 // "10=nnn\x01"
		frameEnd := bodyStart + bodyLen + checksumFieldLen
		if frameEnd > len(r.buf) {
			return // incomplete frame, wait for more bytes
		}

		body := r.buf[bodyStart : bodyStart+bodyLen]
		r.inspectHeader(body)

		r.buf = r.buf[frameEnd:]
	}
}

// inspectHeader looks for MsgType=A (Logon, tag 35) and the composite
// key / heartbeat interval fields, reporting a Logon to the Framer
// without otherwise decoding the message.
func (r *Receiver) inspectHeader(body []byte) {
	if !bytes.Contains(body, []byte("35=A"+string(rune(soh)))) {
		return
	}

	username := fieldValue(body, "553=")
	password := fieldValue(body, "554=")
	if r.auth != nil && !r.auth.Authenticate(username, password) {
		r.framerRef.OnEndpointError(r.connectionID, errAuthenticationFailed)
		return
	}

	key := framer.CompositeKey{
		SenderCompID: fieldValue(body, "49="),
		TargetCompID: fieldValue(body, "56="),
	}
	heartbeatIntervalS := parseInt([]byte(fieldValue(body, "108=")))
	if heartbeatIntervalS < 0 {
		heartbeatIntervalS = 0
	}
	r.framerRef.OnLogonReceived(r.connectionID, key, heartbeatIntervalS)
}

func (r *Receiver) Close(reason framer.DisconnectReason) {
	if r.closed {
		return
	}
	r.closed = true
	_ = r.conn.Close()
}

// Sender buffers outbound frames and drains them to the socket across
// possibly many PollDrain calls when a write would block.
type Sender struct {
	conn         net.Conn
	connectionID int64
	libraryID    int32
	framerRef    framer.FramerCallbacks
	logger       log.Logger

	pending []byte
	closed  bool
}

func (s *Sender) ConnectionID() int64 { return s.connectionID }
func (s *Sender) LibraryID() int32    { return s.libraryID }

func (s *Sender) Enqueue(frame []byte) framer.Position {
	if s.closed {
		return framer.Backpressured
	}
	if len(s.pending)+len(frame) > maxFrameBytes*64 {
		return framer.Backpressured
	}
	s.pending = append(s.pending, frame...)
	return framer.Position(len(s.pending))
}

func (s *Sender) PollDrain() (bool, error) {
	if s.closed || len(s.pending) == 0 {
		return false, nil
	}
	if err := s.conn.SetWriteDeadline(time.Now()); err != nil {
		return false, err
	}
	n, err := s.conn.Write(s.pending)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, err
	}
	s.pending = s.pending[n:]
	return n > 0, nil
}

func (s *Sender) Close() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close()
}
