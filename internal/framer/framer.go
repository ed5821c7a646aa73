package framer

import (
	"net"
	"strconv"

	"github.com/luxfi/log"
)

// connectionEntry is the Framer's record of a live TCP connection: its
// endpoints and current ownership. spec.md §3 invariant: every
// connection-id appears in exactly one ownership set (ENGINE via
// GatewaySessions, or exactly one library's owned set) — LibraryID here
// is that owner, EngineLibraryID meaning "the engine".
type connectionEntry struct {
	connectionID int64
	receiver     ReceiverEndpoint
	sender       SenderEndpoint
	libraryID    int32
	direction    Direction
	loggedOn     bool
	sessionKey   CompositeKey
	sessionID    int64
}

// Framer is the single-threaded event-loop core described in spec.md.
// Every field below is touched only from the goroutine that calls
// DoWork; there is no internal locking (spec.md §5).
type Framer struct {
	clock  Clock
	config Config
	logger log.Logger

	channels        ChannelSupplier
	listener        Listener
	endpointFactory EndpointFactory
	bus             PublicationBus

	commandSource        CommandSource
	sessionIdentityStore SessionIdentityStore
	replayQuery          ReplayQuery
	isLeader             func() bool
	errorHandler         ErrorHandler
	metrics              FramerMetrics

	gatewaySessions *GatewaySessions
	libraries       *LibraryRegistry

	connections      map[int64]*connectionEntry
	connectionOrder  []int64
	receiverCursor   int
	senderCursor     int
	nextConnectionID int64

	initiateReplies       map[int64]*initiateReplyState
	libraryConnectReplies map[int64]*libraryConnectState

	pendingLibraryTimeouts []int32

	snapshotRequests chan chan FramerSnapshot

	closed bool
}

// FramerSnapshot is the point-in-time operator view of Framer state
// (internal/monitor's data source), computed inside DoWork where reading
// libraries/connections/gatewaySessions without locking is safe
// (spec.md §5). External goroutines never read Framer fields directly;
// they call RequestSnapshot and wait on the channel it returns.
type FramerSnapshot struct {
	Leader          bool
	Libraries       []*Library
	SessionCount    int
	ConnectionCount int
}

// FramerMetrics is the narrow metrics sink the Framer reports to;
// internal/metrics.FramerMetrics implements it against Prometheus.
// noopMetrics is used when the caller passes nil.
type FramerMetrics interface {
	ConnectionAccepted()
	ConnectionRejectedNotLeader()
	LibraryConnected(isNew bool)
	LibraryTimedOut()
	CommandProcessed(kind string)
	PublicationBackpressured(kind string)
	TickObserved(commandsDrained, receiversPolled, sendersPolled int)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAccepted()                                      {}
func (noopMetrics) ConnectionRejectedNotLeader()                             {}
func (noopMetrics) LibraryConnected(bool)                                    {}
func (noopMetrics) LibraryTimedOut()                                         {}
func (noopMetrics) CommandProcessed(string)                                  {}
func (noopMetrics) PublicationBackpressured(string)                          {}
func (noopMetrics) TickObserved(int, int, int)                               {}

// NewFramer wires the collaborators described in spec.md §6 into a
// Framer and binds its accept socket. Passing nil for optional
// collaborators (replayQuery, metrics) installs safe no-ops.
func NewFramer(
	cfg Config,
	clock Clock,
	channels ChannelSupplier,
	endpointFactory EndpointFactory,
	commandSource CommandSource,
	sessionIdentityStore SessionIdentityStore,
	isLeader func() bool,
	errorHandler ErrorHandler,
	logger log.Logger,
	metrics FramerMetrics,
	replayQuery ReplayQuery,
) (*Framer, error) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if replayQuery == nil {
		replayQuery = noopReplayQuery{}
	}

	ln, err := channels.Listen(net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.BindPort)))
	if err != nil {
		return nil, err
	}

	return &Framer{
		clock:                clock,
		config:               cfg,
		logger:               logger,
		channels:             channels,
		listener:             ln,
		endpointFactory:      endpointFactory,
		bus:                  endpointFactory.InboundPublication(),
		commandSource:        commandSource,
		sessionIdentityStore: sessionIdentityStore,
		replayQuery:          replayQuery,
		isLeader:             isLeader,
		errorHandler:         errorHandler,
		metrics:              metrics,
		gatewaySessions:       NewGatewaySessions(),
		libraries:             NewLibraryRegistry(),
		connections:           make(map[int64]*connectionEntry),
		initiateReplies:       make(map[int64]*initiateReplyState),
		libraryConnectReplies: make(map[int64]*libraryConnectState),
		snapshotRequests:      make(chan chan FramerSnapshot, snapshotRequestQueueDepth),
	}, nil
}

// snapshotRequestQueueDepth bounds how many concurrent RequestSnapshot
// callers can be waiting; monitor.Run's own poll interval keeps this
// well under saturation in practice.
const snapshotRequestQueueDepth = 8

// RequestSnapshot asks the DoWork goroutine to compute a FramerSnapshot
// on its next tick and enqueues the reply on the returned channel. It
// never blocks the calling goroutine: if the request queue is full, the
// returned channel is closed immediately with no value, so callers must
// treat a closed-without-value channel as "try again later" (spec.md §5:
// no goroutine but DoWork's may touch Framer state directly).
func (f *Framer) RequestSnapshot() <-chan FramerSnapshot {
	reply := make(chan FramerSnapshot, 1)
	select {
	case f.snapshotRequests <- reply:
	default:
		close(reply)
	}
	return reply
}

// pollSnapshotRequests drains every pending RequestSnapshot call and
// answers each from Framer-owned state, safe here because this only ever
// runs on the DoWork goroutine.
func (f *Framer) pollSnapshotRequests() int {
	answered := 0
	for {
		select {
		case reply := <-f.snapshotRequests:
			reply <- FramerSnapshot{
				Leader:          f.isLeader(),
				Libraries:       f.libraries.All(),
				SessionCount:    f.gatewaySessions.Len(),
				ConnectionCount: len(f.connections),
			}
			close(reply)
			answered++
		default:
			return answered
		}
	}
}

// Offer enqueues a command for the next DoWork call to dispatch. In
// production this is called by whatever adapts the wire subscription
// (solo or clustered) into Command values; tests call it directly.
func (f *Framer) Offer(cmd Command) {
	f.commandSource.Offer(cmd)
}

// DoWork runs one cooperative tick in the fixed order of spec.md §4.1.
// It never blocks and returns the total amount of work performed, so a
// caller-supplied idle strategy can decide whether to spin or back off.
func (f *Framer) DoWork() int {
	if f.closed {
		return 0
	}

	commandsDrained := f.pollCommands()
	accepted := f.pollAccept()
	receiversPolled := f.pollReceivers()
	sendersPolled := f.pollSenders()
	f.checkHeartbeats()
	retried := f.retryBackpressured()
	snapshotsAnswered := f.pollSnapshotRequests()

	f.metrics.TickObserved(commandsDrained, receiversPolled, sendersPolled)

	return commandsDrained + accepted + receiversPolled + sendersPolled + retried + snapshotsAnswered
}

func (f *Framer) pollCommands() int {
	return f.commandSource.Poll(f.config.MaxCommandsPerTick, f.dispatch)
}

// pollAccept services at most one pending connection per tick; a
// listener under sustained connect load simply spreads acceptance across
// more ticks rather than starving receivers/senders in this one
// (spec.md §4.1 "bounded work").
func (f *Framer) pollAccept() int {
	conn, err := f.listener.AcceptNonBlocking()
	if err != nil {
		f.errorHandler.OnError(err)
		return 0
	}
	if conn == nil {
		return 0
	}

	if !f.isLeader() {
		_ = conn.Close()
		f.errorHandler.OnError(ErrNotLeader)
		f.metrics.ConnectionRejectedNotLeader()
		return 1
	}

	connectionID := f.allocConnectionID()
	sentSeqIndex := noopSequenceIndex{}
	recvSeqIndex := noopSequenceIndex{}

	receiver := f.endpointFactory.ReceiverEndpoint(
		conn, connectionID, SessionIDMissing, EngineLibraryID, f,
		sentSeqIndex, recvSeqIndex, f.gatewaySessions, CompositeKey{},
	)
	sender := f.endpointFactory.SenderEndpoint(conn, connectionID, EngineLibraryID, f)

	f.connections[connectionID] = &connectionEntry{
		connectionID: connectionID,
		receiver:     receiver,
		sender:       sender,
		libraryID:    EngineLibraryID,
		direction:    DirectionAcceptor,
	}
	f.connectionOrder = append(f.connectionOrder, connectionID)

	f.gatewaySessions.Acquire(
		connectionID, SessionIDMissing, CompositeKey{},
		DirectionAcceptor, SessionConnected,
		0, 0, 0, "", "",
		NoPreviousLibrary,
	)

	f.metrics.ConnectionAccepted()
	return 1
}

// pollReceivers and pollSenders each visit at most MaxReceiversPerTick
// connections, round-robin across ticks via their own cursor, so a large
// connection count can't make a single tick's receiver or sender pass
// unbounded (spec.md §4.1 "bounded work"). A connection skipped this
// tick is picked up again once the cursor wraps back to it.
func (f *Framer) pollReceivers() int {
	return f.pollConnections(&f.receiverCursor, func(entry *connectionEntry) (bool, error) {
		if entry.receiver == nil {
			return false, nil
		}
		n, err := entry.receiver.PollBytes()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
}

func (f *Framer) pollSenders() int {
	return f.pollConnections(&f.senderCursor, func(entry *connectionEntry) (bool, error) {
		if entry.sender == nil {
			return false, nil
		}
		drained, err := entry.sender.PollDrain()
		if err != nil {
			return false, err
		}
		return drained, nil
	})
}

// pollConnections visits up to config.MaxReceiversPerTick entries from
// connectionOrder starting at *cursor, wrapping around, and leaves
// *cursor pointing just past the last entry visited so the next call
// resumes there. A non-positive or oversized limit falls back to
// visiting every live connection once, matching the unbounded behaviour
// when the knob is left unset.
func (f *Framer) pollConnections(cursor *int, action func(*connectionEntry) (bool, error)) int {
	total := len(f.connectionOrder)
	if total == 0 {
		*cursor = 0
		return 0
	}

	limit := f.config.MaxReceiversPerTick
	if limit <= 0 || limit > total {
		limit = total
	}

	polled := 0
	idx := *cursor % total
	for visited := 0; visited < limit; visited++ {
		connectionID := f.connectionOrder[idx]
		idx = (idx + 1) % total

		entry, ok := f.connections[connectionID]
		if !ok {
			continue
		}
		did, err := action(entry)
		if err != nil {
			f.disconnectInternal(entry.connectionID, DisconnectException)
			continue
		}
		if did {
			polled++
		}
	}
	*cursor = idx
	return polled
}

// removeFromOrder drops a torn-down connection id from connectionOrder so
// pollConnections's cursor never accumulates unbounded stale entries
// across a long-running process.
func (f *Framer) removeFromOrder(connectionID int64) {
	for i, id := range f.connectionOrder {
		if id != connectionID {
			continue
		}
		f.connectionOrder = append(f.connectionOrder[:i], f.connectionOrder[i+1:]...)
		if f.receiverCursor > i {
			f.receiverCursor--
		}
		if f.senderCursor > i {
			f.senderCursor--
		}
		return
	}
}

func (f *Framer) allocConnectionID() int64 {
	id := f.nextConnectionID
	f.nextConnectionID++
	return id
}

// Close performs bounded, idempotent cleanup (spec.md §5): closes the
// accept socket, closes every endpoint sender-first-then-receiver, and
// empties GatewaySessions.
func (f *Framer) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var firstErr error
	if f.listener != nil {
		if err := f.listener.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, entry := range f.connections {
		if entry.sender != nil {
			entry.sender.Close()
		}
		if entry.receiver != nil {
			entry.receiver.Close(DisconnectApplicationDisconnect)
		}
	}
	f.connections = make(map[int64]*connectionEntry)
	f.connectionOrder = nil
	f.receiverCursor = 0
	f.senderCursor = 0
	f.gatewaySessions = NewGatewaySessions()
	return firstErr
}

// noopSequenceIndex satisfies SequenceNumberIndex when the caller hasn't
// wired an actual replicated index — every session starts unseen.
type noopSequenceIndex struct{}

func (noopSequenceIndex) LastKnownSequenceNumber(int64) int { return 0 }
