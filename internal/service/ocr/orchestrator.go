package ocr

import (
	"context"
	"fmt"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinConfidence = 0.3
	DefaultWorkers       = 4
)

// Orchestrator fans out one recognition request per detection and joins them
// before returning the frame's detections.
type Orchestrator struct {
	engine        Engine
	selector      RegionSelector
	minConfidence float64
	workers       int
	logger        *logger.Logger
}

func NewOrchestrator(engine Engine, selector RegionSelector, minConfidence float64, workers int, logger *logger.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		engine:        engine,
		selector:      selector,
		minConfidence: minConfidence,
		workers:       workers,
		logger:        logger,
	}
}

// Recognize returns a copy of detections with PlateText filled where OCR found
// something. Engine failures leave that detection without a plate. If ctx is
// cancelled before every request completes, the outstanding requests are
// abandoned and ctx.Err() is returned.
func (o *Orchestrator) Recognize(ctx context.Context, frame *model.Frame, detections []model.Detection) ([]model.Detection, error) {
	results := make([]model.Detection, len(detections))
	copy(results, detections)
	if len(detections) == 0 {
		return results, nil
	}

	plates := make([]string, len(detections))
	done := make(chan struct{})
	go func() {
		defer close(done)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for i := range detections {
			i := i
			g.Go(func() error {
				plates[i] = o.recognizeOne(gctx, frame, detections[i])
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for i, plate := range plates {
		results[i].PlateText = plate
	}
	return results, nil
}

func (o *Orchestrator) recognizeOne(ctx context.Context, frame *model.Frame, detection model.Detection) string {
	region := o.selector.Select(detection.Box)
	if region.Area() == 0 {
		return ""
	}

	candidates, err := o.engine.Recognize(ctx, frame, region)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warning("OCR failed for %s %s: %v", detection.Label, detection.ID, fmt.Errorf("%w: %v", ErrEngine, err))
		}
		return ""
	}

	plate, _ := SelectPlate(o.filter(candidates))
	return plate
}

// filter drops low-confidence and empty readings. An empty reading means
// "no plate", so the fallback in SelectPlate takes the first non-empty text.
func (o *Orchestrator) filter(candidates []model.OCRCandidate) []model.OCRCandidate {
	kept := candidates[:0:0]
	for _, c := range candidates {
		if c.Confidence >= o.minConfidence && c.Text != "" {
			kept = append(kept, c)
		}
	}
	return kept
}
