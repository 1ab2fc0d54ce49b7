package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond, 1.2)
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond, 0.8)
	if w.Steps() != 2 {
		t.Fatalf("expected 2 steps, got %d", w.Steps())
	}
	snap := w.Snapshot()
	if math.Abs(snap.PairsPerSec-2133.3333) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.PairsPerSec)
	}
	if w.pairs != 0 || w.Steps() != 0 {
		t.Fatalf("window was not reset")
	}
	if snap.LastLoss != 0.8 {
		t.Fatalf("expected last loss 0.8, got %.2f", snap.LastLoss)
	}
	if math.Abs(snap.MeanLoss-1.0) > 1e-12 {
		t.Fatalf("expected mean loss 1.0, got %.4f", snap.MeanLoss)
	}
}

func TestEmptyWindow(t *testing.T) {
	var w Window
	snap := w.Snapshot()
	if snap != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
