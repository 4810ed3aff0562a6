package ui

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceStats is a host-wide usage sample.
type ResourceStats struct {
	CPUPercent  float64
	MemoryUsed  uint64
	MemoryTotal uint64
	MemPercent  float64
}

// ProcessStats is one service process's usage, children included.
type ProcessStats struct {
	CPUPercent float64
	RSS        uint64
	Processes  int
}

// GetResourceStats samples host CPU and memory.
func GetResourceStats() ResourceStats {
	var stats ResourceStats

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsed = memInfo.Used
		stats.MemoryTotal = memInfo.Total
		stats.MemPercent = memInfo.UsedPercent
	}
	return stats
}

// GetProcessStats sums CPU and resident memory over pid and its descendants.
// ok is false when pid is gone.
func GetProcessStats(pid int) (stats ProcessStats, ok bool) {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcessStats{}, false
	}

	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		stats.Processes++
		if pct, err := p.CPUPercent(); err == nil {
			stats.CPUPercent += pct
		}
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			stats.RSS += mi.RSS
		}
		if children, err := p.Children(); err == nil {
			queue = append(queue, children...)
		}
	}
	return stats, true
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
