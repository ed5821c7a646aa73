package framer

// SoloCommandSource is the non-clustered command subscription: a single
// engine node with no replication, used in the "solo" deployment mode
// named in spec.md §4.2.
type SoloCommandSource struct {
	commandQueue
}

func NewSoloCommandSource() *SoloCommandSource {
	return &SoloCommandSource{}
}

func (s *SoloCommandSource) Poll(maxRecords int, handler func(Command) Action) int {
	return s.poll(maxRecords, handler)
}
