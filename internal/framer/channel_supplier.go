package framer

import (
	"net"
	"time"
)

// Listener is a non-blocking accept source. AcceptNonBlocking returns
// (nil, nil) when no connection is pending — the Framer's tick never
// blocks (spec.md §5).
type Listener interface {
	AcceptNonBlocking() (net.Conn, error)
	Addr() net.Addr
	Close() error
}

// PendingConnect is an in-flight outbound dial, polled non-blockingly
// from the tick loop the same way Listener.AcceptNonBlocking is: it
// returns (nil, nil) while the dial is still running, so a single slow
// or unreachable peer never suspends do_work (spec.md §4.2/§5).
type PendingConnect interface {
	PollConnect() (net.Conn, error)
}

// ChannelSupplier opens listening and outbound TCP channels. Production
// code uses the default net-based implementation; tests inject a fake to
// exercise accept-path and connect-path failure modes (spec.md §6
// "channel-supplier factory override").
type ChannelSupplier interface {
	Listen(address string) (Listener, error)
	Connect(address string) (PendingConnect, error)
}

// tcpChannelSupplier is the production ChannelSupplier, backed by real
// sockets.
type tcpChannelSupplier struct{}

func NewTCPChannelSupplier() ChannelSupplier {
	return tcpChannelSupplier{}
}

func (tcpChannelSupplier) Listen(address string) (Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return &pollingListener{ln: ln}, nil
	}
	return &tcpListener{ln: tcpLn}, nil
}

const dialTimeout = 5 * time.Second

// Connect starts the dial on its own goroutine and returns immediately
// with a PendingConnect that the tick loop polls until the goroutine
// reports a result, mirroring the deadline-polling accept above instead
// of blocking the calling tick on net.DialTimeout.
func (tcpChannelSupplier) Connect(address string) (PendingConnect, error) {
	result := make(chan dialResult, 1)
	go func() {
		conn, err := net.DialTimeout("tcp", address, dialTimeout)
		result <- dialResult{conn: conn, err: err}
	}()
	return &tcpPendingConnect{result: result}, nil
}

type dialResult struct {
	conn net.Conn
	err  error
}

type tcpPendingConnect struct {
	result chan dialResult
	done   bool
}

func (p *tcpPendingConnect) PollConnect() (net.Conn, error) {
	if p.done {
		return nil, errDialAlreadyResolved
	}
	select {
	case r := <-p.result:
		p.done = true
		return r.conn, r.err
	default:
		return nil, nil
	}
}

// tcpListener adapts *net.TCPListener's blocking Accept into a
// non-blocking poll using an already-past accept deadline: Accept still
// returns immediately when a connection is already queued (a deadline
// only governs the wait, not an immediately satisfiable Accept), but
// when nothing is pending it returns a timeout error at once instead of
// waiting out a short future deadline, which is the standard Go idiom
// for polling a listener without a dedicated OS-level poller.
type tcpListener struct {
	ln *net.TCPListener
}

func (t *tcpListener) AcceptNonBlocking() (net.Conn, error) {
	if err := t.ln.SetDeadline(time.Now()); err != nil {
		return nil, err
	}
	conn, err := t.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

func (t *tcpListener) Addr() net.Addr { return t.ln.Addr() }
func (t *tcpListener) Close() error   { return t.ln.Close() }

// pollingListener is the same trick generalised to any net.Listener that
// supports deadlines (covers a non-TCP listener returned by net.Listen).
type pollingListener struct {
	ln net.Listener
}

type deadlineListener interface {
	SetDeadline(time.Time) error
}

func (p *pollingListener) AcceptNonBlocking() (net.Conn, error) {
	if dl, ok := p.ln.(deadlineListener); ok {
		_ = dl.SetDeadline(time.Now())
	}
	conn, err := p.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

func (p *pollingListener) Addr() net.Addr { return p.ln.Addr() }
func (p *pollingListener) Close() error   { return p.ln.Close() }
