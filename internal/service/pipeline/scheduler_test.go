package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func frameFor(camera string) *model.Frame {
	return model.NewFrame(make([]byte, 4*4*3), 4, 4, model.PixelRGB, camera)
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never went idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScheduler_DropsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s := NewScheduler(1, func(ctx context.Context, frame *model.Frame) {
		runs.Add(1)
		<-release
	}, testLogger())

	if !s.OnFrame(frameFor("gate")) {
		t.Fatal("first frame should be admitted")
	}

	const k = 25
	for i := 0; i < k; i++ {
		if s.OnFrame(frameFor("gate")) {
			t.Fatalf("frame %d admitted while busy", i)
		}
	}

	close(release)
	waitIdle(t, s)

	stats := s.Stats()
	if runs.Load() != 1 || stats.Processed != 1 {
		t.Errorf("runs = %d, processed = %d; want 1", runs.Load(), stats.Processed)
	}
	if stats.Dropped != k {
		t.Errorf("dropped = %d, want %d", stats.Dropped, k)
	}

	if !s.OnFrame(frameFor("gate")) {
		t.Error("frame after completion should be admitted")
	}
	waitIdle(t, s)
}

func TestScheduler_SamplesEveryNth(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(3, func(ctx context.Context, frame *model.Frame) {
		runs.Add(1)
	}, testLogger())

	var admitted []int
	for i := 1; i <= 9; i++ {
		if s.OnFrame(frameFor("gate")) {
			admitted = append(admitted, i)
		}
		waitIdle(t, s)
	}

	if len(admitted) != 3 || admitted[0] != 3 || admitted[1] != 6 || admitted[2] != 9 {
		t.Errorf("admitted frames %v, want [3 6 9]", admitted)
	}
	if stats := s.Stats(); stats.Skipped != 6 || stats.Received != 9 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestScheduler_ShutdownCancelsAndRejects(t *testing.T) {
	cancelled := make(chan struct{})
	s := NewScheduler(1, func(ctx context.Context, frame *model.Frame) {
		<-ctx.Done()
		close(cancelled)
	}, testLogger())

	s.OnFrame(frameFor("gate"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-cancelled:
	default:
		t.Error("in-flight run was not cancelled")
	}
	if s.OnFrame(frameFor("gate")) {
		t.Error("frames must not be admitted after shutdown")
	}
}

func TestScheduler_PanicReleasesBusy(t *testing.T) {
	s := NewScheduler(1, func(ctx context.Context, frame *model.Frame) {
		panic("boom")
	}, testLogger())

	s.OnFrame(frameFor("gate"))
	waitIdle(t, s)
	if !s.OnFrame(frameFor("gate")) {
		t.Error("scheduler should recover after a panicking run")
	}
	waitIdle(t, s)
}
