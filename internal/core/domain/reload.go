package domain

// ReloadTrigger is the request broadcast to every node during a
// reload-and-disconnect round.
//
// It only identifies the originating node, so that peers know whom to
// disconnect from. It is read-only once constructed.
type ReloadTrigger struct {
	InitiatingNodeID string `json:"initiating_node_id"`
}

// NewReloadTrigger creates a trigger originating from nodeID.
func NewReloadTrigger(nodeID string) ReloadTrigger {
	return ReloadTrigger{InitiatingNodeID: nodeID}
}

// Validate checks that the trigger names its originator.
func (t ReloadTrigger) Validate() error {
	if t.InitiatingNodeID == "" {
		return ErrInvalidTrigger.WithDetails("initiating_node_id is required")
	}
	return nil
}

// NodeOutcome is a single node's successful response to a ReloadTrigger.
// Success is implied by its presence.
type NodeOutcome struct {
	RespondingNodeID string `json:"responding_node_id"`
}

// NodeFailure records a node that could not complete a round.
type NodeFailure struct {
	NodeID string `json:"node_id"`
	Code   string `json:"code,omitempty"`
	Cause  string `json:"cause"`
}

// NewNodeFailure builds a failure entry from err.
func NewNodeFailure(nodeID string, err error) NodeFailure {
	f := NodeFailure{NodeID: nodeID}
	if err != nil {
		f.Code = GetErrorCode(err)
		f.Cause = err.Error()
	}
	return f
}

// ClusterOutcome aggregates the per-node results of one fan-out round.
//
// Entries appear in arrival order; no ordering across nodes is implied.
// A ClusterOutcome is not modified after it has been returned.
type ClusterOutcome struct {
	ClusterName string        `json:"cluster_name"`
	Nodes       []NodeOutcome `json:"nodes"`
	Failures    []NodeFailure `json:"failures"`
}

// HasFailures reports whether any node failed.
func (o ClusterOutcome) HasFailures() bool {
	return len(o.Failures) > 0
}

// SucceededNodeIDs returns the IDs of the nodes that responded.
func (o ClusterOutcome) SucceededNodeIDs() []string {
	ids := make([]string, 0, len(o.Nodes))
	for _, n := range o.Nodes {
		ids = append(ids, n.RespondingNodeID)
	}
	return ids
}

// FailedNodeIDs returns the IDs of the nodes that failed.
func (o ClusterOutcome) FailedNodeIDs() []string {
	ids := make([]string, 0, len(o.Failures))
	for _, f := range o.Failures {
		ids = append(ids, f.NodeID)
	}
	return ids
}

// Failure returns the failure entry recorded for nodeID, if any.
func (o ClusterOutcome) Failure(nodeID string) (NodeFailure, bool) {
	for _, f := range o.Failures {
		if f.NodeID == nodeID {
			return f, true
		}
	}
	return NodeFailure{}, false
}
