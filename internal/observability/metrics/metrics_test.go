package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSearchMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSearchMetrics(reg)
	m.ObserveSearch("exact", 0.01)
	m.ObserveSearch("none", 0.02)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)

	if got := testutil.ToFloat64(m.cacheTotal.WithLabelValues("miss")); got != 2 {
		t.Fatalf("expected 2 cache misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("exact")); got != 1 {
		t.Fatalf("expected 1 exact search, got %v", got)
	}
}

func TestShiftMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShiftMetrics(reg)
	m.ObserveTransition("accept", "conflict")
	m.ObserveMirror(false)

	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("accept", "conflict")); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.mirrorTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 mirror failure, got %v", got)
	}
}

func TestWaitlistMetricsSkipsZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWaitlistMetrics(reg)
	m.ObserveTransition("expired", 0)
	m.ObserveTransition("matched", 2)
	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("matched")); got != 2 {
		t.Fatalf("expected 2 matched, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var s *SearchMetrics
	s.ObserveSearch("exact", 0.1)
	s.ObserveCache(true)
	var sh *ShiftMetrics
	sh.ObserveTransition("accept", "ok")
	sh.ObserveMirror(true)
	var w *WaitlistMetrics
	w.ObserveTransition("matched", 1)
	var o *OutboxMetrics
	o.ObserveDelivery("slot.freed.v1", true)
}
