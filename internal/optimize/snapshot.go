package optimize

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/scanledger/scanledger/internal/entity"
)

// Sample takes one PerformanceSnapshot. Sampling failures degrade to
// zero values rather than erroring; a missing sample just means no
// adjustment this tick.
func (o *Optimizer) Sample(ctx context.Context, queueDepth int) entity.PerformanceSnapshot {
	snap := entity.PerformanceSnapshot{
		SampledAt:     time.Now().UTC(),
		QueueDepth:    queueDepth,
		ActiveWorkers: o.Workers(),
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		snap.DiskPercent = du.UsedPercent
	}
	return snap
}
