package framer

// ClusterCommandSource is the cluster-replicated command subscription —
// the same command stream but delivered only after consensus commits it
// across the cluster (spec.md §4.2's "ClusterableSubscription"). Framing
// and replication live in the consensus layer, out of scope here
// (spec.md §1); once a record reaches this source it is dispatched
// identically to the solo case.
type ClusterCommandSource struct {
	commandQueue
	nodeID       int
	otherNodeIDs []int
}

func NewClusterCommandSource(nodeID int, otherNodeIDs []int) *ClusterCommandSource {
	return &ClusterCommandSource{nodeID: nodeID, otherNodeIDs: otherNodeIDs}
}

func (c *ClusterCommandSource) Poll(maxRecords int, handler func(Command) Action) int {
	return c.poll(maxRecords, handler)
}
