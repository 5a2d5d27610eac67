package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MinInterval is the floor §4.12 places on subscription intervals.
const MinInterval = 500 * time.Millisecond

// HostResolver maps a host name from monitoring.subscribe (anything
// other than "self") to the Collector that samples it.
type HostResolver interface {
	Resolve(host string) (Collector, bool)
}

// HostRegistry is a concurrency-safe HostResolver that SSH connections
// register into when they connect and remove themselves from on
// disconnect, keyed by connection id.
type HostRegistry struct {
	mu    sync.Mutex
	hosts map[string]Collector
}

// NewHostRegistry returns an empty registry.
func NewHostRegistry() *HostRegistry {
	return &HostRegistry{hosts: make(map[string]Collector)}
}

// Register binds connectionID to c, replacing any prior collector for
// the same id.
func (r *HostRegistry) Register(connectionID string, c Collector) {
	r.mu.Lock()
	r.hosts[connectionID] = c
	r.mu.Unlock()
}

// Unregister removes connectionID, e.g. on disconnect.
func (r *HostRegistry) Unregister(connectionID string) {
	r.mu.Lock()
	delete(r.hosts, connectionID)
	r.mu.Unlock()
}

// Resolve implements HostResolver.
func (r *HostRegistry) Resolve(host string) (Collector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.hosts[host]
	return c, ok
}

// HostRegistrar is HostResolver plus the Register/Unregister pair
// *HostRegistry implements; Dispatcher.RegisterHost/UnregisterHost
// delegate to the configured resolver only when it satisfies this,
// so a resolver with no registration support (or none at all) just
// no-ops instead of panicking.
type HostRegistrar interface {
	HostResolver
	Register(connectionID string, c Collector)
	Unregister(connectionID string)
}

var _ HostRegistrar = (*HostRegistry)(nil)

// Dispatcher implements agentserver.MonitoringProvider: one ticking
// goroutine per subscribed host, each publishing already-JSON-encoded
// monitoring.data payloads until its context is cancelled or
// Unsubscribe is called. Only one active subscription per host is
// kept; a second Subscribe for the same host cancels the first.
type Dispatcher struct {
	self     Collector
	resolver HostResolver
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewDispatcher builds a Dispatcher. self samples host="self";
// resolver looks up every other host (may be nil if only local
// monitoring is wired).
func NewDispatcher(self Collector, resolver HostResolver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		self:     self,
		resolver: resolver,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// Subscribe starts periodic sampling at intervalMs and returns a
// channel of JSON-encoded Stats payloads. Per §4.7/§4.12 the caller
// (the agent dispatcher) has already clamped intervalMs to the
// 500ms/2000ms floor and default.
func (d *Dispatcher) Subscribe(ctx context.Context, host string, intervalMs int) (<-chan []byte, error) {
	collector, err := d.resolve(host)
	if err != nil {
		return nil, err
	}
	interval := time.Duration(intervalMs) * time.Millisecond
	if interval < MinInterval {
		interval = MinInterval
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	if prior, ok := d.active[host]; ok {
		prior()
	}
	d.active[host] = cancel
	d.mu.Unlock()

	out := make(chan []byte, 8)
	go d.run(runCtx, host, collector, interval, out)
	return out, nil
}

// RegisterHost binds connectionID to c so a later Subscribe(ctx,
// connectionID, ...) resolves it, implementing
// agentserver.MonitoringProvider's registration half. It's a no-op if
// the resolver this Dispatcher was built with doesn't support
// registration (e.g. nil, or a test double).
func (d *Dispatcher) RegisterHost(connectionID string, c Collector) {
	if reg, ok := d.resolver.(HostRegistrar); ok {
		reg.Register(connectionID, c)
	}
}

// UnregisterHost removes connectionID's registration, if any.
func (d *Dispatcher) UnregisterHost(connectionID string) {
	if reg, ok := d.resolver.(HostRegistrar); ok {
		reg.Unregister(connectionID)
	}
}

// Unsubscribe stops host's active subscription, if any.
func (d *Dispatcher) Unsubscribe(host string) {
	d.mu.Lock()
	cancel, ok := d.active[host]
	if ok {
		delete(d.active, host)
	}
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Dispatcher) resolve(host string) (Collector, error) {
	if host == "" || host == "self" {
		if d.self == nil {
			return nil, fmt.Errorf("monitoring: no local collector configured")
		}
		return d.self, nil
	}
	if d.resolver == nil {
		return nil, fmt.Errorf("monitoring: host %q is not self and no resolver is configured", host)
	}
	c, ok := d.resolver.Resolve(host)
	if !ok {
		return nil, fmt.Errorf("monitoring: unknown host %q", host)
	}
	return c, nil
}

func (d *Dispatcher) run(ctx context.Context, host string, collector Collector, interval time.Duration, out chan<- []byte) {
	defer close(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev CPUCounters
	haveSample := false

	sample := func() bool {
		stats, counters, err := collector.Sample(ctx)
		if err != nil {
			d.logger.Warn("monitoring: sample failed", "host", host, "error", err)
			return true
		}
		if haveSample && counters.Total() > 0 {
			stats.CPUUsagePercent = CPUPercentFromDelta(prev, counters)
		}
		prev = counters
		haveSample = true

		payload, err := json.Marshal(stats)
		if err != nil {
			d.logger.Warn("monitoring: marshal stats failed", "host", host, "error", err)
			return true
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return false
		}
		return true
	}

	if !sample() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sample() {
				return
			}
		}
	}
}
