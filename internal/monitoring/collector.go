package monitoring

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/armaxri/termiHub-sub001/internal/sshtransport"
)

// Collector samples one Stats+CPUCounters snapshot. cpu_usage_percent
// in the returned Stats is always 0 on Linux (Dispatcher fills it in
// from the delta against the previous sample); darwinCollector
// computes it directly since macOS exposes no equivalent delta-able
// counter.
type Collector interface {
	Sample(ctx context.Context) (Stats, CPUCounters, error)
}

type runner func(ctx context.Context, command string) (string, error)

func runLocal(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("monitoring: run %q: %w", command, err)
	}
	return string(out), nil
}

// NewLocalCollector returns the collector for the current machine,
// selected once at construction via runtime.GOOS.
func NewLocalCollector() Collector {
	if runtime.GOOS == "darwin" {
		return darwinCollector{run: runLocal}
	}
	return linuxCollector{run: runLocal}
}

// NewSSHCollector runs the same Linux compound command over an SSH
// session's exec channel, for monitoring a remote connection per
// §4.8/§4.12. Remote agent hosts are assumed Linux; macOS-over-SSH
// monitoring is out of scope (the agent binary would run the local
// collector instead).
func NewSSHCollector(sess *sshtransport.Session) Collector {
	return linuxCollector{run: func(ctx context.Context, command string) (string, error) {
		return sess.CombinedOutput(ctx, command)
	}}
}

type linuxCollector struct {
	run runner
}

func (c linuxCollector) Sample(ctx context.Context) (Stats, CPUCounters, error) {
	out, err := c.run(ctx, linuxCommand)
	if err != nil {
		return Stats{}, CPUCounters{}, err
	}
	return parseLinuxStats(out)
}

type darwinCollector struct {
	run runner
}

func (c darwinCollector) Sample(ctx context.Context) (Stats, CPUCounters, error) {
	var s Stats

	if out, err := c.run(ctx, "hostname"); err == nil {
		s.Hostname = strings.TrimSpace(out)
	}
	if out, err := c.run(ctx, "sysctl -n vm.loadavg"); err == nil {
		s.LoadAverage = parseDarwinLoadAvg(out)
	}
	if out, err := c.run(ctx, "top -l 1 -n 0"); err == nil {
		s.CPUUsagePercent = parseDarwinCPUUsage(out)
	}

	var memTotalBytes uint64
	if out, err := c.run(ctx, "sysctl -n hw.memsize"); err == nil {
		memTotalBytes, _ = strconv.ParseUint(strings.TrimSpace(out), 10, 64)
	}
	s.MemoryTotalKB = memTotalBytes / 1024
	if out, err := c.run(ctx, "vm_stat"); err == nil {
		s.MemoryAvailableKB = parseDarwinFreeKB(out)
	}
	if s.MemoryTotalKB > 0 {
		used := satSub(s.MemoryTotalKB, s.MemoryAvailableKB)
		s.MemoryUsedPercent = 100 * float64(used) / float64(s.MemoryTotalKB)
	}

	if out, err := c.run(ctx, "sysctl -n kern.boottime"); err == nil {
		s.UptimeSeconds = darwinUptimeSeconds(out)
	}
	if out, err := c.run(ctx, "df -Pk /"); err == nil {
		s.DiskTotalKB, s.DiskUsedKB, s.DiskUsedPercent = parseDF(out)
	}
	if out, err := c.run(ctx, "uname -sr"); err == nil {
		s.OSInfo = strings.TrimSpace(out)
	}

	return s, CPUCounters{}, nil
}
