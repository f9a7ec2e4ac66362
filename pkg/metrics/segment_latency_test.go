package metrics

import (
	"testing"
	"time"
)

func TestLatencyWindow_Stats(t *testing.T) {
	w := NewLatencyWindow(100)
	for i := 1; i <= 100; i++ {
		w.Record(time.Duration(i) * time.Millisecond)
	}
	s := w.Stats()
	if s.Count != 100 || s.Samples != 100 {
		t.Fatalf("count/samples = %d/%d", s.Count, s.Samples)
	}
	if s.MinMs != 1 || s.MaxMs != 100 {
		t.Errorf("min/max = %v/%v", s.MinMs, s.MaxMs)
	}
	if s.P50Ms != 50 || s.P99Ms != 99 {
		t.Errorf("p50/p99 = %v/%v", s.P50Ms, s.P99Ms)
	}
}

func TestLatencyWindow_Wraps(t *testing.T) {
	w := NewLatencyWindow(3)
	for _, d := range []int{100, 1, 2, 3} {
		w.Record(time.Duration(d) * time.Millisecond)
	}
	s := w.Stats()
	if s.Count != 4 || s.Samples != 3 {
		t.Fatalf("count/samples = %d/%d", s.Count, s.Samples)
	}
	if s.MaxMs != 3 {
		t.Errorf("oldest sample should be overwritten, max = %v", s.MaxMs)
	}
}

func TestLatencyWindow_Empty(t *testing.T) {
	if s := NewLatencyWindow(10).Stats(); s.Samples != 0 || s.AvgMs != 0 {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestLatencyRegistry(t *testing.T) {
	r := NewLatencyRegistry(10)
	r.Record("analyze", time.Millisecond)
	r.Record("analyze", 3*time.Millisecond)
	r.Record("performance", time.Millisecond)

	all := r.AllStats()
	if len(all) != 2 || all["analyze"].Count != 2 {
		t.Errorf("stats = %+v", all)
	}
}
