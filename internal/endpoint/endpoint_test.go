package endpoint

import (
	"net"
	"testing"
	"time"

	"github.com/luxfi/fixgateway/internal/framer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPipe returns a connected pair of real loopback TCP sockets rather
// than net.Pipe: PollBytes/PollDrain's non-blocking contract depends on
// kernel socket buffering and independent read/write deadlines the way
// production's tcpChannelSupplier connections behave, which net.Pipe's
// synchronous, deadline-tied-to-close rendezvous semantics don't
// reproduce.
func tcpPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	require.NotNil(t, server)
	return client, server
}

// fakeCallbacks records every callback a Receiver fires, the same role
// fakes_test.go's fakeReceiver.framerRef plays for the Framer side of
// this boundary.
type fakeCallbacks struct {
	logons []loggedOn
	errs   []error
}

type loggedOn struct {
	connectionID       int64
	key                framer.CompositeKey
	heartbeatIntervalS int
}

func (c *fakeCallbacks) OnLogonReceived(connectionID int64, key framer.CompositeKey, heartbeatIntervalS int) {
	c.logons = append(c.logons, loggedOn{connectionID, key, heartbeatIntervalS})
}

func (c *fakeCallbacks) OnEndpointError(connectionID int64, err error) {
	c.errs = append(c.errs, err)
}

func newReceiver(conn net.Conn, callbacks framer.FramerCallbacks) *Receiver {
	return &Receiver{
		conn:         conn,
		connectionID: 1,
		framerRef:    callbacks,
		buf:          make([]byte, 0, maxFrameBytes),
		readBuf:      make([]byte, maxFrameBytes),
	}
}

// logonFrame builds a minimal, well-formed FIX logon frame: "9=" body
// length, SOH-delimited fields including MsgType=A, and a checksum
// trailer whose value is never actually verified by this package
// (spec.md §1's "no FIX body parsing beyond framing").
func logonFrame(senderCompID, targetCompID, username, password string, heartbeatIntervalS int) []byte {
	body := "35=A" + soh1() +
		"49=" + senderCompID + soh1() +
		"56=" + targetCompID + soh1() +
		"108=" + itoa(heartbeatIntervalS) + soh1() +
		"553=" + username + soh1() +
		"554=" + password + soh1()
	frame := "9=" + itoa(len(body)) + soh1() + body + "10=000" + soh1()
	return []byte(frame)
}

func soh1() string { return string(rune(soh)) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestPollBytesFramesCompleteLogonAndReportsCallback(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	callbacks := &fakeCallbacks{}
	r := newReceiver(server, callbacks)

	frame := logonFrame("SENDER", "TARGET", "user", "pass", 30)
	_, err := client.Write(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := r.PollBytes()
		require.NoError(t, err)
		return n > 0
	}, time.Second, time.Millisecond)

	require.Len(t, callbacks.logons, 1)
	assert.Equal(t, "SENDER", callbacks.logons[0].key.SenderCompID)
	assert.Equal(t, "TARGET", callbacks.logons[0].key.TargetCompID)
	assert.Equal(t, 30, callbacks.logons[0].heartbeatIntervalS)
	assert.Empty(t, r.buf, "the complete frame should have been fully consumed")
}

func TestPollBytesReturnsImmediatelyWhenIdle(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	r := newReceiver(server, &fakeCallbacks{})

	start := time.Now()
	n, err := r.PollBytes()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Less(t, elapsed, 20*time.Millisecond, "PollBytes must not block waiting for bytes that never arrive")
}

func TestPollBytesRejectsUnauthenticatedLogon(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	callbacks := &fakeCallbacks{}
	r := newReceiver(server, callbacks)
	r.auth = denyAllAuth{}

	frame := logonFrame("SENDER", "TARGET", "baduser", "badpass", 30)
	_, err := client.Write(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := r.PollBytes()
		require.NoError(t, err)
		return len(callbacks.errs) > 0
	}, time.Second, time.Millisecond)

	assert.Empty(t, callbacks.logons, "an authentication failure must not report a logon")
}

type denyAllAuth struct{}

func (denyAllAuth) Authenticate(username, password string) bool { return false }

func TestPollBytesReportsEndpointErrorOnEOF(t *testing.T) {
	client, server := tcpPipe(t)
	defer server.Close()

	callbacks := &fakeCallbacks{}
	r := newReceiver(server, callbacks)

	require.NoError(t, client.Close())

	require.Eventually(t, func() bool {
		_, err := r.PollBytes()
		require.NoError(t, err)
		return len(callbacks.errs) > 0
	}, time.Second, time.Millisecond)
}

func TestPollBytesNoopAfterClose(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()

	r := newReceiver(server, &fakeCallbacks{})
	r.Close(framer.DisconnectApplicationDisconnect)

	n, err := r.PollBytes()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFrameCompleteHandlesPartialFrameAcrossPolls(t *testing.T) {
	r := newReceiver(nil, &fakeCallbacks{})

	frame := logonFrame("SENDER", "TARGET", "user", "pass", 10)
	split := len(frame) / 2

	r.buf = append(r.buf, frame[:split]...)
	r.frameComplete()
	assert.NotEmpty(t, r.buf, "an incomplete frame must remain buffered, not be dropped")

	r.buf = append(r.buf, frame[split:]...)
	r.frameComplete()
	assert.Empty(t, r.buf, "once the frame completes it must be fully consumed")
}

func TestFrameCompleteResynchronisesOnMalformedLength(t *testing.T) {
	r := newReceiver(nil, &fakeCallbacks{})
	r.buf = append(r.buf, []byte("garbage 9=notanumber\x01more garbage")...)

	r.frameComplete()

	assert.Empty(t, r.buf, "a malformed body length must drop the buffer to resynchronise")
}

func TestInspectHeaderIgnoresNonLogonMessages(t *testing.T) {
	callbacks := &fakeCallbacks{}
	r := newReceiver(nil, callbacks)

	body := []byte("35=0" + soh1() + "49=SENDER" + soh1())
	r.inspectHeader(body)

	assert.Empty(t, callbacks.logons)
}

func TestPollDrainWritesPendingBytesNonBlocking(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	s := &Sender{conn: server}
	s.Enqueue([]byte("hello"))

	require.Eventually(t, func() bool {
		drained, err := s.PollDrain()
		require.NoError(t, err)
		return drained
	}, time.Second, time.Millisecond)

	assert.Empty(t, s.pending)

	received := make([]byte, 5)
	_, err := client.Read(received)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(received))
}

func TestPollDrainNoopWhenNothingPending(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	s := &Sender{conn: server}

	start := time.Now()
	drained, err := s.PollDrain()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, drained)
	assert.Less(t, elapsed, 20*time.Millisecond)
}

func TestSenderEnqueueBackpressuredWhenFull(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	s := &Sender{conn: server}
	huge := make([]byte, maxFrameBytes*64+1)

	pos := s.Enqueue(huge)

	assert.True(t, pos.IsBackpressured())
}

func TestSenderCloseIsIdempotent(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()

	s := &Sender{conn: server}
	s.Close()
	assert.NotPanics(t, func() { s.Close() })
}
