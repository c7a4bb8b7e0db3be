package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
)

// Stage is the lifecycle position of the frame currently in the pipeline.
type Stage int32

const (
	StageIdle Stage = iota
	StageSampled
	StagePreprocessing
	StageInferring
	StageDecoding
	StageFiltering
	StageOCRFanOut
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSampled:
		return "sampled"
	case StagePreprocessing:
		return "preprocessing"
	case StageInferring:
		return "inferring"
	case StageDecoding:
		return "decoding"
	case StageFiltering:
		return "filtering"
	case StageOCRFanOut:
		return "ocr"
	case StageReady:
		return "ready"
	}
	return fmt.Sprintf("Stage(%d)", int32(s))
}

// Result is what a processed frame publishes.
type Result struct {
	Frame      *model.Frame
	Detections []model.Detection
	Duration   time.Duration
}

// PublishFunc receives the detections of every completed frame, including
// frames whose stages failed and produced nothing.
type PublishFunc func(Result)

// Components are the collaborators of one pipeline. A nil Backend means the
// model failed to load; LoadErr then carries the reason.
type Components struct {
	Preprocessor ai.FramePreprocessor
	Backend      ai.Backend
	Decoder      *ai.Decoder
	IOUThreshold float64
	OCR          *ocr.Orchestrator
	LoadErr      error
}

type Pipeline struct {
	preprocessor ai.FramePreprocessor
	backend      ai.Backend
	decoder      *ai.Decoder
	iouThreshold float64
	ocr          *ocr.Orchestrator
	loadErr      error
	logger       *logger.Logger

	stage atomic.Int32
}

func New(c Components, logger *logger.Logger) *Pipeline {
	if c.Backend == nil && c.LoadErr == nil {
		c.LoadErr = fmt.Errorf("%w: no inference backend", ai.ErrModelLoad)
	}
	return &Pipeline{
		preprocessor: c.Preprocessor,
		backend:      c.Backend,
		decoder:      c.Decoder,
		iouThreshold: c.IOUThreshold,
		ocr:          c.OCR,
		loadErr:      c.LoadErr,
		logger:       logger,
	}
}

// Ready reports whether the model loaded. The scheduler must not be enabled otherwise.
func (p *Pipeline) Ready() bool {
	return p.loadErr == nil
}

// LoadError returns why the pipeline is not ready, or nil.
func (p *Pipeline) LoadError() error {
	return p.loadErr
}

func (p *Pipeline) Stage() Stage {
	return Stage(p.stage.Load())
}

func (p *Pipeline) setStage(s Stage) {
	p.stage.Store(int32(s))
}

// Run takes frame through every stage and publishes once all OCR requests
// have joined. Stage failures are logged and yield an empty detection list.
// A cancelled run publishes nothing.
func (p *Pipeline) Run(ctx context.Context, frame *model.Frame, publish PublishFunc) {
	defer p.setStage(StageIdle)
	if !p.Ready() {
		return
	}

	started := time.Now()
	p.setStage(StageSampled)
	detections, err := p.detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("Detection failed on camera %s: %v", frame.Camera, err)
		detections = nil
	}

	if len(detections) > 0 && p.ocr != nil {
		p.setStage(StageOCRFanOut)
		withPlates, err := p.ocr.Recognize(ctx, frame, detections)
		if err != nil {
			p.logger.Warning("OCR abandoned on camera %s: %v", frame.Camera, err)
			return
		}
		detections = withPlates
	}
	if ctx.Err() != nil {
		return
	}

	p.setStage(StageReady)
	if publish != nil {
		publish(Result{Frame: frame, Detections: detections, Duration: time.Since(started)})
	}
}

func (p *Pipeline) detect(ctx context.Context, frame *model.Frame) ([]model.Detection, error) {
	p.setStage(StagePreprocessing)
	input, err := p.preprocessor.Preprocess(frame)
	if err != nil {
		return nil, err
	}

	p.setStage(StageInferring)
	output, err := p.backend.Forward(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrInference, err)
	}

	p.setStage(StageDecoding)
	candidates, err := p.decoder.Decode(output)
	if err != nil {
		return nil, err
	}

	p.setStage(StageFiltering)
	return ai.NonMaxSuppression(candidates, p.iouThreshold), nil
}

// Close releases the inference backend.
func (p *Pipeline) Close() error {
	if p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
