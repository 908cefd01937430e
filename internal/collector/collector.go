// internal/collector/collector.go
package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/signalnine/hostwatch/internal/protocol"
)

// Source supplies the current snapshot on demand
type Source interface {
	Snapshot(ctx context.Context) (protocol.Snapshot, error)
}

// Host reads utilization counters from the local OS
type Host struct {
	Server    string
	DiskPath  string
	CPUWindow time.Duration
	now       func() time.Time
}

// NewHost returns a collector sampling CPU over one second and disk usage of /
func NewHost(server string) *Host {
	return &Host{
		Server:    server,
		DiskPath:  "/",
		CPUWindow: time.Second,
		now:       time.Now,
	}
}

// Snapshot samples cpu, memory and disk utilization percentages
func (h *Host) Snapshot(ctx context.Context) (protocol.Snapshot, error) {
	// Blocks for CPUWindow while cpu time is measured
	cpuPercents, err := cpu.PercentWithContext(ctx, h.CPUWindow, false)
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("read cpu: %w", err)
	}
	if len(cpuPercents) == 0 {
		return protocol.Snapshot{}, fmt.Errorf("read cpu: no samples")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("read memory: %w", err)
	}

	usage, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("read disk %s: %w", h.DiskPath, err)
	}

	return protocol.Snapshot{
		Timestamp: h.now().Truncate(time.Second),
		CPU:       Percent(cpuPercents[0]),
		Mem:       Percent(vm.UsedPercent),
		Disk:      Percent(usage.UsedPercent),
		Server:    h.Server,
	}, nil
}

// Percent clamps v to [0,100] and rounds to one decimal place
func Percent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*10) / 10
}
