package crawler

import (
	"context"
	"testing"
	"time"
)

func TestPacerFirstWaitIsImmediate(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Second, 0)
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait blocked for %s", elapsed)
	}
}

func TestPacerSpacesSubsequentWaits(t *testing.T) {
	t.Parallel()

	const delay = 50 * time.Millisecond
	p := NewPacer(delay, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Errorf("three waits took %s, want at least %s", elapsed, 2*delay)
	}
}

func TestPacerZeroDelayNeverBlocks(t *testing.T) {
	t.Parallel()

	p := NewPacer(0, 0.5)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("100 unpaced waits took %s", elapsed)
	}
}

func TestPacerCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- p.Wait(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("Wait returned nil after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}
