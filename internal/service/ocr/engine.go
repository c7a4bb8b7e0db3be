// Package ocr reads plate text from the lower part of each detected vehicle.
package ocr

import (
	"context"
	"errors"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

// ErrEngine wraps any failure reported by a recognition backend.
var ErrEngine = errors.New("ocr engine failed")

// Engine recognizes text inside region of frame. Region is normalized with a
// top-left origin.
type Engine interface {
	Recognize(ctx context.Context, frame *model.Frame, region model.Box) ([]model.OCRCandidate, error)
}
