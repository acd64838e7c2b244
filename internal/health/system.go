package health

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// collectSystemMetrics reads CPU, memory, and disk usage from the host.
// CPU is sampled instantaneously (interval 0) to keep evaluations fast.
func collectSystemMetrics(ctx context.Context) (SystemMetrics, error) {
	var m SystemMetrics

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return m, fmt.Errorf("cpu usage: %w", err)
	}
	if len(cpuPercents) > 0 {
		m.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return m, fmt.Errorf("memory usage: %w", err)
	}
	m.MemoryPercent = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return m, fmt.Errorf("disk usage: %w", err)
	}
	m.DiskPercent = du.UsedPercent

	// Load and uptime are best-effort: not every platform reports them.
	if la, err := load.AvgWithContext(ctx); err == nil {
		m.Load1 = la.Load1
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		m.UptimeSecs = up
	}

	return m, nil
}
