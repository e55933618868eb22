package health

import (
	"context"
	"fmt"

	"github.com/layer-3/fluxauth/ports"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// HostHardware reads memory and CPU figures from the host and reports the
// tier the node was configured with.
type HostHardware struct {
	tier string
}

var _ ports.Hardware = (*HostHardware)(nil)

func NewHostHardware(tier string) *HostHardware {
	return &HostHardware{tier: tier}
}

func (h *HostHardware) TotalMemoryBytes(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory stats: %w", err)
	}
	return vm.Total, nil
}

func (h *HostHardware) CPUCoreCount(ctx context.Context) (int, error) {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("failed to count cpu cores: %w", err)
	}
	return n, nil
}

func (h *HostHardware) NodeTier(ctx context.Context) (string, error) {
	return h.tier, nil
}
