package clusterv1

// ReloadRequest asks a node to take part in a reload round.
type ReloadRequest struct {
	// InitiatingNodeID is the node that reloaded its transport material
	// and started the round.
	InitiatingNodeID string `json:"initiating_node_id"`
}

// ReloadResponse is a node's answer to a ReloadRequest.
type ReloadResponse struct {
	RespondingNodeID string `json:"responding_node_id"`
}

// Request headers carrying the caller identity between nodes. They are
// data only: every receiving node re-checks the identity itself.
const (
	HeaderPrincipal       = "Tlsmesh-Principal"
	HeaderPrincipalSource = "Tlsmesh-Principal-Source"
)

// ErrorCodeKey is the error metadata key carrying the domain error code.
const ErrorCodeKey = "Tlsmesh-Error-Code"
