package metric

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ainqa-health/aigateway/pkg/model"
)

func setupTestTracker(t *testing.T) *Tracker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	tracker, err := NewTracker(model.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func TestNewTrackerUnreachable(t *testing.T) {
	if _, err := NewTracker(model.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("NewTracker() error = nil, want connection failure")
	}
}

func TestAverageLatency(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	for _, latency := range []float64{0.2, 0.4, 0.6} {
		if err := tracker.RecordLatency(ctx, "openai/gpt-4o", latency, "success"); err != nil {
			t.Fatalf("RecordLatency() error = %v", err)
		}
	}

	avg, err := tracker.AverageLatency(ctx, "openai/gpt-4o", 10)
	if err != nil {
		t.Fatalf("AverageLatency() error = %v", err)
	}
	if math.Abs(avg-0.4) > 1e-9 {
		t.Errorf("AverageLatency() = %v, want 0.4", avg)
	}
}

func TestAverageLatencyNoData(t *testing.T) {
	tracker := setupTestTracker(t)

	avg, err := tracker.AverageLatency(context.Background(), "openai/gpt-4o", 10)
	if err != nil {
		t.Fatalf("AverageLatency() error = %v", err)
	}
	if avg != 0 {
		t.Errorf("AverageLatency() = %v, want 0 for no data", avg)
	}
}

func TestErrorPercentages(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	for _, code := range []int{503, 503, 503, 429} {
		if err := tracker.RecordErrorCode(ctx, "openai/gpt-4o", code); err != nil {
			t.Fatalf("RecordErrorCode() error = %v", err)
		}
	}

	pct, err := tracker.ErrorPercentages(ctx, "openai/gpt-4o", 10)
	if err != nil {
		t.Fatalf("ErrorPercentages() error = %v", err)
	}
	if math.Abs(pct[503]-75) > 1e-9 {
		t.Errorf("pct[503] = %v, want 75", pct[503])
	}
	if math.Abs(pct[429]-25) > 1e-9 {
		t.Errorf("pct[429] = %v, want 25", pct[429])
	}
}

func TestErrorPercentagesNegativeN(t *testing.T) {
	tracker := setupTestTracker(t)
	if _, err := tracker.ErrorPercentages(context.Background(), "openai/gpt-4o", -1); err == nil {
		t.Fatal("ErrorPercentages(-1) error = nil, want rejection")
	}
}

func TestCleanupOld(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	if err := tracker.RecordLatency(ctx, "openai/gpt-4o", 0.5, "success"); err != nil {
		t.Fatalf("RecordLatency() error = %v", err)
	}
	if err := tracker.RecordErrorCode(ctx, "openai/gpt-4o", 503); err != nil {
		t.Fatalf("RecordErrorCode() error = %v", err)
	}

	// An age in the future drops everything recorded so far.
	if err := tracker.CleanupOld(ctx, "openai/gpt-4o", -time.Minute); err != nil {
		t.Fatalf("CleanupOld() error = %v", err)
	}

	avg, err := tracker.AverageLatency(ctx, "openai/gpt-4o", 10)
	if err != nil {
		t.Fatalf("AverageLatency() error = %v", err)
	}
	if avg != 0 {
		t.Errorf("AverageLatency() = %v after cleanup, want 0", avg)
	}
	pct, err := tracker.ErrorPercentages(ctx, "openai/gpt-4o", 10)
	if err != nil {
		t.Fatalf("ErrorPercentages() error = %v", err)
	}
	if len(pct) != 0 {
		t.Errorf("ErrorPercentages() = %v after cleanup, want empty", pct)
	}
}

func TestClearModel(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	if err := tracker.RecordLatency(ctx, "openai/gpt-4o", 0.5, "success"); err != nil {
		t.Fatalf("RecordLatency() error = %v", err)
	}
	if err := tracker.ClearModel(ctx, "openai/gpt-4o"); err != nil {
		t.Fatalf("ClearModel() error = %v", err)
	}

	avg, err := tracker.AverageLatency(ctx, "openai/gpt-4o", 10)
	if err != nil {
		t.Fatalf("AverageLatency() error = %v", err)
	}
	if avg != 0 {
		t.Errorf("AverageLatency() = %v after clear, want 0", avg)
	}
}

func TestNilTrackerIsInert(t *testing.T) {
	var tracker *Tracker
	ctx := context.Background()

	if err := tracker.RecordLatency(ctx, "m", 1, "success"); err != nil {
		t.Errorf("nil RecordLatency() error = %v", err)
	}
	if err := tracker.RecordErrorCode(ctx, "m", 503); err != nil {
		t.Errorf("nil RecordErrorCode() error = %v", err)
	}
	if avg, err := tracker.AverageLatency(ctx, "m", 5); err != nil || avg != 0 {
		t.Errorf("nil AverageLatency() = (%v, %v), want (0, nil)", avg, err)
	}
	if err := tracker.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
