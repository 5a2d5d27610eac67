package monitoring

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakeCollector struct {
	calls    int
	counters []CPUCounters
}

func (f *fakeCollector) Sample(ctx context.Context) (Stats, CPUCounters, error) {
	c := f.counters[f.calls]
	if f.calls < len(f.counters)-1 {
		f.calls++
	}
	return Stats{Hostname: "fake"}, c, nil
}

func TestDispatcherSubscribeSelfReportsZeroThenDelta(t *testing.T) {
	fc := &fakeCollector{counters: []CPUCounters{
		{User: 0, Idle: 100},
		{User: 100, Idle: 100},
	}}
	d := NewDispatcher(fc, nil, nil)

	ch, err := d.Subscribe(context.Background(), "self", 500)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var first, second Stats
	select {
	case raw := <-ch:
		if err := json.Unmarshal(raw, &first); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first sample")
	}
	if first.CPUUsagePercent != 0 {
		t.Errorf("first sample CPUUsagePercent = %v, want 0", first.CPUUsagePercent)
	}

	select {
	case raw := <-ch:
		if err := json.Unmarshal(raw, &second); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second sample")
	}
	if second.CPUUsagePercent <= 0 {
		t.Errorf("second sample CPUUsagePercent = %v, want > 0", second.CPUUsagePercent)
	}

	d.Unsubscribe("self")
	select {
	case _, ok := <-ch:
		if ok {
			// a buffered sample may still be pending; drain until closed
			for ok {
				_, ok = <-ch
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel to close after Unsubscribe")
	}
}

func TestDispatcherSubscribeUnknownHostWithoutResolver(t *testing.T) {
	d := NewDispatcher(&fakeCollector{counters: []CPUCounters{{}}}, nil, nil)
	if _, err := d.Subscribe(context.Background(), "conn-1", 1000); err == nil {
		t.Fatal("expected error for unresolvable host")
	}
}

func TestDispatcherSubscribeResolvesViaHostRegistry(t *testing.T) {
	reg := NewHostRegistry()
	reg.Register("conn-1", &fakeCollector{counters: []CPUCounters{{}}})

	d := NewDispatcher(nil, reg, nil)
	ch, err := d.Subscribe(context.Background(), "conn-1", 500)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sample from registered host")
	}

	reg.Unregister("conn-1")
	if _, ok := reg.Resolve("conn-1"); ok {
		t.Error("expected conn-1 to be gone after Unregister")
	}
}

func TestDispatcherSubscribeSelfMissingCollector(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	if _, err := d.Subscribe(context.Background(), "self", 1000); err == nil {
		t.Fatal("expected error when no local collector is configured")
	}
}
