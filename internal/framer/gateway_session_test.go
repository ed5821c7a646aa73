package framer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGatewaySessionNeedsHeartbeat(t *testing.T) {
	gs := &GatewaySession{HeartbeatIntervalS: 30}
	gs.ArmHeartbeat(1_000)

	assert.False(t, gs.NeedsHeartbeat(1_000), "no time has passed yet")
	assert.False(t, gs.NeedsHeartbeat(1_000+29_999))
	assert.True(t, gs.NeedsHeartbeat(1_000+30_000), "a full interval has elapsed")
	assert.True(t, gs.NeedsHeartbeat(1_000+60_000))
}

func TestGatewaySessionNeedsHeartbeatUnknownInterval(t *testing.T) {
	gs := &GatewaySession{HeartbeatIntervalS: 0}
	gs.ArmHeartbeat(1_000)

	assert.False(t, gs.NeedsHeartbeat(1_000_000_000), "an unknown interval never needs a heartbeat")
}

func TestGatewaySessionIsActive(t *testing.T) {
	gs := &GatewaySession{State: SessionConnected}
	assert.False(t, gs.IsActive())

	gs.State = SessionActive
	assert.True(t, gs.IsActive())

	gs.State = SessionReleased
	assert.False(t, gs.IsActive())
}

func TestGatewaySessionsAcquireIndexesBySessionID(t *testing.T) {
	sessions := NewGatewaySessions()

	sessions.Acquire(1, SessionIDMissing, CompositeKey{}, DirectionAcceptor, SessionConnected, 0, 0, 0, "", "", NoPreviousLibrary)
	_, ok := sessions.BySessionID(0)
	assert.False(t, ok, "a session without a known id yet is not indexed by session id")

	sessions.SetSessionID(1, 42)
	gs, ok := sessions.BySessionID(42)
	assert.True(t, ok)
	assert.Equal(t, int64(1), gs.ConnectionID)

	sessions.Remove(1)
	assert.Equal(t, 0, sessions.Len())
	_, ok = sessions.BySessionID(42)
	assert.False(t, ok)
}

func TestGatewaySessionsPreviouslyOwnedBy(t *testing.T) {
	sessions := NewGatewaySessions()
	sessions.Acquire(1, 10, CompositeKey{SenderCompID: "A"}, DirectionAcceptor, SessionActive, 0, 0, 0, "", "", 7)
	sessions.Acquire(2, 11, CompositeKey{SenderCompID: "B"}, DirectionAcceptor, SessionActive, 0, 0, 0, "", "", 8)

	reclaimed := sessions.PreviouslyOwnedBy(7)
	assert.Len(t, reclaimed, 1)
	assert.Equal(t, int64(1), reclaimed[0].ConnectionID)
}

func TestFakeClockAdvance(t *testing.T) {
	clock := NewFakeClock(100)
	assert.Equal(t, int64(100), clock.NowMillis())

	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, int64(350), clock.NowMillis())

	clock.Set(0)
	assert.Equal(t, int64(0), clock.NowMillis())
}
