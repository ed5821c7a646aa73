package framer

import (
	"net"
)

// fakeChannelSupplier hands out an in-memory listener and lets tests
// queue accepted connections and dial failures without touching a real
// socket, the same role FramerTest.java's mocked EndPointFactory plays
// for the channel layer.
type fakeChannelSupplier struct {
	listener  *fakeListener
	dialErr   error
	dialQueue []net.Conn
	dialCalls []string

	// pendingDialTicks, when > 0, makes the next Connect's PendingConnect
	// return (nil, nil) that many PollConnect calls before resolving, so a
	// test can exercise the "dial still in flight" retry path without a
	// real socket.
	pendingDialTicks int
}

func newFakeChannelSupplier() *fakeChannelSupplier {
	return &fakeChannelSupplier{listener: &fakeListener{}}
}

func (f *fakeChannelSupplier) Listen(address string) (Listener, error) {
	return f.listener, nil
}

func (f *fakeChannelSupplier) Connect(address string) (PendingConnect, error) {
	f.dialCalls = append(f.dialCalls, address)
	if f.dialErr != nil {
		return nil, f.dialErr
	}

	var conn net.Conn
	if len(f.dialQueue) == 0 {
		client, _ := net.Pipe()
		conn = client
	} else {
		conn = f.dialQueue[0]
		f.dialQueue = f.dialQueue[1:]
	}
	return &fakePendingConnect{conn: conn, ticksRemaining: f.pendingDialTicks}, nil
}

// fakePendingConnect resolves to conn immediately unless ticksRemaining
// was seeded positive, in which case it stalls that many PollConnect
// calls first, mirroring a dial still in progress across ticks.
type fakePendingConnect struct {
	conn           net.Conn
	ticksRemaining int
	done           bool
}

func (p *fakePendingConnect) PollConnect() (net.Conn, error) {
	if p.done {
		return nil, errDialAlreadyResolved
	}
	if p.ticksRemaining > 0 {
		p.ticksRemaining--
		return nil, nil
	}
	p.done = true
	return p.conn, nil
}

// fakeListener lets a test push a pending connection to be returned by
// the next AcceptNonBlocking call.
type fakeListener struct {
	pending []net.Conn
	closed  bool
}

func (l *fakeListener) AcceptNonBlocking() (net.Conn, error) {
	if len(l.pending) == 0 {
		return nil, nil
	}
	conn := l.pending[0]
	l.pending = l.pending[1:]
	return conn, nil
}

func (l *fakeListener) Addr() net.Addr { return fakeAddr{} }
func (l *fakeListener) Close() error   { l.closed = true; return nil }
func (l *fakeListener) queue(conn net.Conn) {
	l.pending = append(l.pending, conn)
}

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "fake:0" }

// fakeEndpointFactory builds fakeReceiver/fakeSender pairs and keeps
// them addressable by connection id so a test can drive PollBytes
// results, simulate a parsed Logon, or force an error without a real
// socket.
type fakeEndpointFactory struct {
	bus       PublicationBus
	receivers map[int64]*fakeReceiver
	senders   map[int64]*fakeSender
}

func newFakeEndpointFactory(bus PublicationBus) *fakeEndpointFactory {
	return &fakeEndpointFactory{
		bus:       bus,
		receivers: make(map[int64]*fakeReceiver),
		senders:   make(map[int64]*fakeSender),
	}
}

func (f *fakeEndpointFactory) InboundPublication() PublicationBus { return f.bus }

func (f *fakeEndpointFactory) ReceiverEndpoint(
	channel net.Conn,
	connectionID, sessionID int64,
	libraryID int32,
	framerRef FramerCallbacks,
	sentSeqIndex, recvSeqIndex SequenceNumberIndex,
	sessions *GatewaySessions,
	sessionKey CompositeKey,
) ReceiverEndpoint {
	r := &fakeReceiver{connectionID: connectionID, libraryID: libraryID, framerRef: framerRef}
	f.receivers[connectionID] = r
	return r
}

func (f *fakeEndpointFactory) SenderEndpoint(
	channel net.Conn,
	connectionID int64,
	libraryID int32,
	framerRef FramerCallbacks,
) SenderEndpoint {
	s := &fakeSender{connectionID: connectionID, libraryID: libraryID}
	f.senders[connectionID] = s
	return s
}

type fakeReceiver struct {
	connectionID int64
	libraryID    int32
	framerRef    FramerCallbacks

	pollErr    error
	pollResult int
	closed     bool
	closeReason DisconnectReason
}

func (r *fakeReceiver) ConnectionID() int64 { return r.connectionID }
func (r *fakeReceiver) LibraryID() int32    { return r.libraryID }

func (r *fakeReceiver) PollBytes() (int, error) {
	if r.pollErr != nil {
		err := r.pollErr
		r.pollErr = nil
		return 0, err
	}
	result := r.pollResult
	r.pollResult = 0
	return result, nil
}

func (r *fakeReceiver) Close(reason DisconnectReason) {
	r.closed = true
	r.closeReason = reason
}

// logon simulates the wire producing a complete Logon frame, the same
// callback a real endpoint.Receiver fires from inspectHeader.
func (r *fakeReceiver) logon(key CompositeKey, heartbeatIntervalS int) {
	r.framerRef.OnLogonReceived(r.connectionID, key, heartbeatIntervalS)
}

type fakeSender struct {
	connectionID int64
	libraryID    int32
	enqueued     [][]byte
	closed       bool
}

func (s *fakeSender) ConnectionID() int64 { return s.connectionID }
func (s *fakeSender) LibraryID() int32    { return s.libraryID }

func (s *fakeSender) Enqueue(frame []byte) Position {
	s.enqueued = append(s.enqueued, frame)
	return Position(len(s.enqueued))
}

func (s *fakeSender) PollDrain() (bool, error) { return false, nil }
func (s *fakeSender) Close()                   { s.closed = true }

// fakeBus records every publication and lets a test script a queue of
// Backpressured/OK outcomes per method, mirroring how FramerTest.java's
// mocked GatewayPublication scripts backpressure with Mockito.
type fakeBus struct {
	backpressureQueue map[string][]bool // true = backpressured, consumed FIFO
	calls             []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{backpressureQueue: make(map[string][]bool)}
}

func (b *fakeBus) scriptBackpressure(method string, outcomes ...bool) {
	b.backpressureQueue[method] = append(b.backpressureQueue[method], outcomes...)
}

func (b *fakeBus) resultFor(method string) Position {
	b.calls = append(b.calls, method)
	queue := b.backpressureQueue[method]
	if len(queue) == 0 {
		return Position(1)
	}
	backpressured := queue[0]
	b.backpressureQueue[method] = queue[1:]
	if backpressured {
		return Backpressured
	}
	return Position(1)
}

func (b *fakeBus) SaveManageConnection(connectionID, sessionID int64, address string, libraryID int32, direction Direction, lastSentSeq, lastRecvSeq int, state GatewaySessionState, heartbeatIntervalS int) Position {
	return b.resultFor("ManageConnection")
}

func (b *fakeBus) SaveLogon(libraryID int32, connectionID, sessionID int64, sentSeq, recvSeq int, senderCompID, senderSubID, senderLocationID, targetCompID, username, password string, status LogonStatus) Position {
	return b.resultFor("Logon")
}

func (b *fakeBus) SaveError(kind GatewayErrorKind, libraryID int32, replyToCorrelationID int64, message string) Position {
	return b.resultFor("Error")
}

func (b *fakeBus) SaveReleaseSessionReply(status SessionReplyStatus, correlationID int64) Position {
	return b.resultFor("ReleaseSessionReply")
}

func (b *fakeBus) SaveRequestSessionReply(status SessionReplyStatus, correlationID int64) Position {
	return b.resultFor("RequestSessionReply")
}

func (b *fakeBus) SaveApplicationHeartbeat(libraryID int32) Position {
	return b.resultFor("ApplicationHeartbeat")
}

func (b *fakeBus) SaveControlNotification(libraryID int32, sessions []SessionInfo) Position {
	return b.resultFor("ControlNotification")
}

func (b *fakeBus) SaveLibraryTimeout(libraryID int32, reserved int64) Position {
	return b.resultFor("LibraryTimeout")
}

// fakeSessionIdentityStore assigns sequential session ids per composite
// key and can be told to report a key as a duplicate.
type fakeSessionIdentityStore struct {
	byKey     map[CompositeKey]int64
	active    map[int64]bool
	nextID    int64
	forceDupe map[CompositeKey]bool
}

func newFakeSessionIdentityStore() *fakeSessionIdentityStore {
	return &fakeSessionIdentityStore{
		byKey:     make(map[CompositeKey]int64),
		active:    make(map[int64]bool),
		forceDupe: make(map[CompositeKey]bool),
	}
}

func (s *fakeSessionIdentityStore) OnLogon(key CompositeKey) int64 {
	if s.forceDupe[key] {
		return SessionIDDuplicate
	}
	id, ok := s.byKey[key]
	if !ok {
		id = s.nextID
		s.nextID++
		s.byKey[key] = id
	}
	if s.active[id] {
		return SessionIDDuplicate
	}
	s.active[id] = true
	return id
}

func (s *fakeSessionIdentityStore) Release(sessionID int64) {
	delete(s.active, sessionID)
}

// fakeErrorHandler records every hard error reported to it.
type fakeErrorHandler struct {
	errs []error
}

func (h *fakeErrorHandler) OnError(err error) {
	h.errs = append(h.errs, err)
}
