package framer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoloCommandSourceFIFO(t *testing.T) {
	s := NewSoloCommandSource()
	s.Offer(DisconnectCommand{ConnectionID: 1})
	s.Offer(DisconnectCommand{ConnectionID: 2})
	s.Offer(DisconnectCommand{ConnectionID: 3})

	var seen []int64
	consumed := s.Poll(10, func(cmd Command) Action {
		seen = append(seen, cmd.(DisconnectCommand).ConnectionID)
		return ActionContinue
	})

	assert.Equal(t, 3, consumed)
	assert.Equal(t, []int64{1, 2, 3}, seen)
	assert.Equal(t, 0, s.Len())
}

func TestSoloCommandSourceAbortLeavesRecordAtFront(t *testing.T) {
	s := NewSoloCommandSource()
	s.Offer(DisconnectCommand{ConnectionID: 1})
	s.Offer(DisconnectCommand{ConnectionID: 2})

	calls := 0
	consumed := s.Poll(10, func(cmd Command) Action {
		calls++
		return ActionAbort
	})

	assert.Equal(t, 0, consumed)
	assert.Equal(t, 1, calls, "abort stops the poll without trying later records")
	assert.Equal(t, 2, s.Len(), "the aborted record and everything after it stay queued")

	consumed = s.Poll(1, func(cmd Command) Action {
		assert.Equal(t, int64(1), cmd.(DisconnectCommand).ConnectionID, "the aborted record is re-delivered unchanged")
		return ActionContinue
	})
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 1, s.Len())
}

func TestSoloCommandSourceBreakStopsWithoutConsuming(t *testing.T) {
	s := NewSoloCommandSource()
	s.Offer(DisconnectCommand{ConnectionID: 1})
	s.Offer(DisconnectCommand{ConnectionID: 2})

	calls := 0
	consumed := s.Poll(10, func(cmd Command) Action {
		calls++
		return ActionBreak
	})

	assert.Equal(t, 0, consumed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, s.Len())
}

func TestSoloCommandSourceRespectsMaxRecords(t *testing.T) {
	s := NewSoloCommandSource()
	for i := int64(0); i < 5; i++ {
		s.Offer(DisconnectCommand{ConnectionID: i})
	}

	consumed := s.Poll(2, func(cmd Command) Action { return ActionContinue })

	assert.Equal(t, 2, consumed)
	assert.Equal(t, 3, s.Len())
}
