package monitoring

import (
	"fmt"
	"strconv"
	"strings"
)

// linuxCommand concatenates hostname, loadavg, the aggregate cpu line,
// meminfo, uptime, df, and uname into one round trip, per §4.12.
const linuxCommand = `hostname && cat /proc/loadavg && head -1 /proc/stat && cat /proc/meminfo && cat /proc/uptime && df -Pk / && uname -sr`

// parseLinuxStats parses linuxCommand's output positionally, ported
// from agent/src/monitoring/parser.rs. cpu_usage_percent is always 0
// in the returned Stats; the caller fills it in from a CPUCounters
// delta.
func parseLinuxStats(output string) (Stats, CPUCounters, error) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) < 6 {
		return Stats{}, CPUCounters{}, fmt.Errorf("monitoring: unexpected output format (too few lines)")
	}

	var s Stats
	s.Hostname = strings.TrimSpace(lines[0])

	loadParts := strings.Fields(lines[1])
	for i := 0; i < 3 && i < len(loadParts); i++ {
		s.LoadAverage[i], _ = strconv.ParseFloat(loadParts[i], 64)
	}

	counters := parseCPULine(lines[2])

	var memTotal, memAvail uint64
	meminfoEnd := 3
memLoop:
	for i := 3; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			memTotal = parseMeminfoValue(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvail = parseMeminfoValue(line)
		}
		// /proc/uptime has no colon and starts with a digit; two
		// float fields distinguish it from a stray meminfo line.
		if !strings.Contains(line, ":") && line != "" && line[0] >= '0' && line[0] <= '9' {
			parts := strings.Fields(line)
			if len(parts) == 2 && strings.Contains(parts[0], ".") && strings.Contains(parts[1], ".") {
				meminfoEnd = i
				break memLoop
			}
		}
	}
	s.MemoryTotalKB = memTotal
	s.MemoryAvailableKB = memAvail
	if memTotal > 0 {
		used := satSub(memTotal, memAvail)
		s.MemoryUsedPercent = 100 * float64(used) / float64(memTotal)
	}

	uptimeLine := "0 0"
	if meminfoEnd < len(lines) {
		uptimeLine = lines[meminfoEnd]
	}
	if parts := strings.Fields(uptimeLine); len(parts) > 0 {
		s.UptimeSeconds, _ = strconv.ParseFloat(parts[0], 64)
	}

	rest := ""
	if meminfoEnd+1 < len(lines) {
		rest = strings.Join(lines[meminfoEnd+1:], "\n")
	}
	s.DiskTotalKB, s.DiskUsedKB, s.DiskUsedPercent = parseDF(rest)

	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed != "" && !strings.HasPrefix(trimmed, "/") {
			s.OSInfo = trimmed
			break
		}
	}

	return s, counters, nil
}

// parseCPULine parses the aggregate `cpu` line from /proc/stat:
// "cpu  user nice system idle iowait irq softirq steal [guest guest_nice]".
func parseCPULine(line string) CPUCounters {
	parts := strings.Fields(line)
	get := func(i int) uint64 {
		if i >= len(parts) {
			return 0
		}
		v, _ := strconv.ParseUint(parts[i], 10, 64)
		return v
	}
	return CPUCounters{
		User: get(1), Nice: get(2), System: get(3), Idle: get(4),
		IOWait: get(5), IRQ: get(6), SoftIRQ: get(7), Steal: get(8),
	}
}

// parseMeminfoValue extracts the numeric kB value from a line like
// "MemTotal:       16384000 kB".
func parseMeminfoValue(line string) uint64 {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(parts[1], 10, 64)
	return v
}

// parseDF scans df -Pk / output (optionally followed by an uname
// line) for the first data row and returns total/used kB and used
// percent.
func parseDF(output string) (total, used uint64, percent float64) {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(line, "Filesystem") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 5 {
			total, _ = strconv.ParseUint(parts[1], 10, 64)
			used, _ = strconv.ParseUint(parts[2], 10, 64)
			percent, _ = strconv.ParseFloat(strings.TrimSuffix(parts[4], "%"), 64)
			return
		}
	}
	return
}
