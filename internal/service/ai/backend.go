package ai

import (
	"context"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

// Backend runs the detection model: one preprocessed tensor in, the raw output
// tensor (with its shape) out. Implementations need not be safe for concurrent use;
// the pipeline never calls Forward from more than one goroutine at a time.
type Backend interface {
	Forward(ctx context.Context, input model.Tensor) (model.Tensor, error)
	Close() error
}

// FramePreprocessor turns a raw frame into the model input tensor.
type FramePreprocessor interface {
	Preprocess(frame *model.Frame) (model.Tensor, error)
}
