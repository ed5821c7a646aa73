package framer

// ReplayQuery schedules replay of previously-logged messages to a
// library that requested a session with a specific last-received
// sequence number. The replicated log and its replay query engine are
// out of scope here (spec.md §1); the Framer only ever schedules.
type ReplayQuery interface {
	ScheduleReplay(libraryID int32, sessionID int64, connectionID int64, fromSequenceNumber int64) error
}

// noopReplayQuery is used when no ReplayQuery collaborator is configured
// — replay scheduling becomes a no-op rather than a nil dereference,
// matching the "external collaborator named but not implemented here"
// framing of spec.md §9.
type noopReplayQuery struct{}

func (noopReplayQuery) ScheduleReplay(int32, int64, int64, int64) error { return nil }
