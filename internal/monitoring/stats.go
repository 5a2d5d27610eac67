// Package monitoring implements §4.12's monitoring provider: periodic
// host statistics sampling exposed to the agent dispatcher as
// already-JSON-encoded monitoring.data payloads.
package monitoring

// Stats is one point-in-time system snapshot.
type Stats struct {
	Hostname          string     `json:"hostname"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
	LoadAverage       [3]float64 `json:"load_average"`
	CPUUsagePercent   float64    `json:"cpu_usage_percent"`
	MemoryTotalKB     uint64     `json:"memory_total_kb"`
	MemoryAvailableKB uint64     `json:"memory_available_kb"`
	MemoryUsedPercent float64    `json:"memory_used_percent"`
	DiskTotalKB       uint64     `json:"disk_total_kb"`
	DiskUsedKB        uint64     `json:"disk_used_kb"`
	DiskUsedPercent   float64    `json:"disk_used_percent"`
	OSInfo            string     `json:"os_info"`
}

// CPUCounters are the cumulative CPU time counters the aggregate `cpu`
// line of /proc/stat reports. Two consecutive snapshots produce a
// usage percentage via CPUPercentFromDelta.
type CPUCounters struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ, Steal uint64
}

// Total is the sum of every counter.
func (c CPUCounters) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait + c.IRQ + c.SoftIRQ + c.Steal
}

// IdleTotal is idle + iowait.
func (c CPUCounters) IdleTotal() uint64 { return c.Idle + c.IOWait }

// CPUPercentFromDelta computes usage percentage from the delta between
// two counter snapshots, per agent/src/monitoring/parser.rs.
func CPUPercentFromDelta(prev, curr CPUCounters) float64 {
	totalDelta := satSub(curr.Total(), prev.Total())
	if totalDelta == 0 {
		return 0
	}
	idleDelta := satSub(curr.IdleTotal(), prev.IdleTotal())
	activeDelta := satSub(totalDelta, idleDelta)
	return 100 * float64(activeDelta) / float64(totalDelta)
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
