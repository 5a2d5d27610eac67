package monitoring

import (
	"strconv"
	"strings"
	"time"
)

func parseDarwinLoadAvg(s string) [3]float64 {
	replaced := strings.NewReplacer("{", "", "}", "").Replace(s)
	fields := strings.Fields(replaced)
	var out [3]float64
	for i := 0; i < 3 && i < len(fields); i++ {
		out[i], _ = strconv.ParseFloat(fields[i], 64)
	}
	return out
}

// parseDarwinCPUUsage reads `top -l 1 -n 0`'s "CPU usage: U% user, S%
// sys, I% idle" summary line and returns 100 - idle.
func parseDarwinCPUUsage(top string) float64 {
	for _, line := range strings.Split(top, "\n") {
		if !strings.Contains(line, "CPU usage") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f != "idle" || i == 0 {
				continue
			}
			idle, err := strconv.ParseFloat(strings.TrimSuffix(fields[i-1], "%"), 64)
			if err == nil {
				return 100 - idle
			}
		}
	}
	return 0
}

// parseDarwinFreeKB reads vm_stat's "Pages free:" line, scaled by the
// page size reported in its header.
func parseDarwinFreeKB(vmStat string) uint64 {
	pageSize := uint64(4096)
	lines := strings.Split(vmStat, "\n")
	if len(lines) > 0 {
		if idx := strings.Index(lines[0], "page size of "); idx >= 0 {
			fields := strings.Fields(lines[0][idx+len("page size of "):])
			if len(fields) > 0 {
				if v, err := strconv.ParseUint(fields[0], 10, 64); err == nil {
					pageSize = v
				}
			}
		}
	}
	var freePages uint64
	for _, line := range lines {
		if !strings.HasPrefix(line, "Pages free:") {
			continue
		}
		v := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "Pages free:"), "."))
		freePages, _ = strconv.ParseUint(v, 10, 64)
	}
	return freePages * pageSize / 1024
}

// parseDarwinBoottime extracts the epoch seconds from sysctl's
// `{ sec = 1690000000, usec = 0 } ...` kern.boottime output.
func parseDarwinBoottime(s string) (int64, bool) {
	const marker = "sec = "
	idx := strings.Index(s, marker)
	if idx < 0 {
		return 0, false
	}
	rest := s[idx+len(marker):]
	end := strings.IndexAny(rest, ", ")
	if end < 0 {
		end = len(rest)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(rest[:end]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func darwinUptimeSeconds(bootOut string) float64 {
	bootSec, ok := parseDarwinBoottime(bootOut)
	if !ok {
		return 0
	}
	return float64(time.Now().Unix() - bootSec)
}
