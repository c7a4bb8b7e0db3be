// Package pipeline drives sampled camera frames through detection and OCR.
package pipeline

import (
	"context"
	"sync"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

// DefaultInterval processes every 5th frame of a camera.
const DefaultInterval = 5

// RunFunc processes one admitted frame. It must return once ctx is cancelled.
type RunFunc func(ctx context.Context, frame *model.Frame)

// SchedulerStats counts what happened to delivered frames.
type SchedulerStats struct {
	Received  uint64 `json:"received"`
	Skipped   uint64 `json:"skipped"`
	Dropped   uint64 `json:"dropped"`
	Processed uint64 `json:"processed"`
}

// Scheduler samples every Nth frame per camera and runs at most one frame at
// a time. Frames arriving while a run is in flight are dropped, never queued.
type Scheduler struct {
	run    RunFunc
	every  int
	logger *logger.Logger

	mu            sync.Mutex
	frameCounters map[string]int
	busy          bool
	closed        bool
	stats         SchedulerStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(every int, run RunFunc, logger *logger.Logger) *Scheduler {
	if every <= 0 {
		every = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		run:           run,
		every:         every,
		logger:        logger,
		frameCounters: make(map[string]int),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// OnFrame is called at the camera's native rate and never blocks on the run.
// It reports whether the frame was admitted.
func (s *Scheduler) OnFrame(frame *model.Frame) bool {
	s.mu.Lock()
	s.stats.Received++
	if s.closed || s.busy {
		s.stats.Dropped++
		s.mu.Unlock()
		return false
	}

	s.frameCounters[frame.Camera]++
	if s.frameCounters[frame.Camera]%s.every != 0 {
		s.stats.Skipped++
		s.mu.Unlock()
		return false
	}
	s.frameCounters[frame.Camera] = 0
	s.busy = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(frame)
	return true
}

func (s *Scheduler) execute(frame *model.Frame) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pipeline panicked on camera %s: %v", frame.Camera, r)
		}
		s.mu.Lock()
		s.busy = false
		s.stats.Processed++
		s.mu.Unlock()
	}()

	s.run(s.ctx, frame)
}

// Busy reports whether a frame is in flight.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Shutdown stops admitting frames, cancels the in-flight run and waits for it
// to return or for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("🛑 Frame scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
