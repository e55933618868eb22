package ports

import "context"

// ContainerRuntime probes the local container engine.
type ContainerRuntime interface {
	ListContainers(ctx context.Context) error
}

// Hardware reports node resources and the tier the node is registered as.
type Hardware interface {
	TotalMemoryBytes(ctx context.Context) (uint64, error)
	CPUCoreCount(ctx context.Context) (int, error)
	NodeTier(ctx context.Context) (string, error)
}

// DistressState is the node's reported denial-of-service condition.
type DistressState struct {
	OK               bool    // false when the reporter itself could not determine the state
	Severity         int     // larger is worse, above 10 blocks issuance
	Message          *string // non-nil when the node flagged a problem
	HardwareAdequate bool
}

// DistressReporter reports the node's distress state.
type DistressReporter interface {
	DistressState(ctx context.Context) (DistressState, error)
}
