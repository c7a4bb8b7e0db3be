package ai

import (
	"fmt"
	"math"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/google/uuid"
)

const (
	// DefaultConfidenceThreshold is the minimum class score for a raw candidate.
	DefaultConfidenceThreshold = 0.25
	// DefaultIOUThreshold is the overlap above which NMS suppresses a box.
	DefaultIOUThreshold = 0.45
	// DefaultInputSize is the square input edge of YOLO-style models.
	DefaultInputSize = 640
)

// Decoder turns YOLO-style output ([C,N], [N,C], [1,C,N] or [1,N,C] with
// C = 4 + NumClasses) into normalized detections. Boxes come out with a top-left
// origin and y growing downward, the same convention as the frame, so no flip is applied.
type Decoder struct {
	InputSize           int
	NumClasses          int
	ConfidenceThreshold float64
	AllowedClasses      map[int]bool
	Labels              []string
}

// NewDecoder builds a decoder. An empty allowed list means every class is kept.
func NewDecoder(inputSize, numClasses int, threshold float64, allowed []int) *Decoder {
	d := &Decoder{
		InputSize:           inputSize,
		NumClasses:          numClasses,
		ConfidenceThreshold: threshold,
		Labels:              CocoLabels,
	}
	if len(allowed) > 0 {
		d.AllowedClasses = make(map[int]bool, len(allowed))
		for _, c := range allowed {
			d.AllowedClasses[c] = true
		}
	}
	return d
}

// layout describes where the channel and candidate axes sit in the flat buffer.
type layout struct {
	channels     int
	candidates   int
	channelMajor bool
}

// index returns the flat offset of channel c of candidate i.
func (l layout) index(c, i int) int {
	if l.channelMajor {
		return c*l.candidates + i
	}
	return i*l.channels + c
}

func (d *Decoder) resolveLayout(shape []int, n int) (layout, error) {
	channels := 4 + d.NumClasses
	dims := shape
	switch len(shape) {
	case 2:
	case 3:
		if shape[0] != 1 {
			return layout{}, &ShapeError{Shape: shape, Channels: channels, Reason: "batch size must be 1"}
		}
		dims = shape[1:]
	default:
		return layout{}, &ShapeError{Shape: shape, Channels: channels, Reason: "rank must be 2 or 3"}
	}

	var l layout
	switch {
	case dims[0] == channels:
		l = layout{channels: channels, candidates: dims[1], channelMajor: true}
	case dims[1] == channels:
		l = layout{channels: channels, candidates: dims[0], channelMajor: false}
	default:
		return layout{}, &ShapeError{Shape: shape, Channels: channels, Reason: "no axis matches channel count"}
	}

	if l.channels*l.candidates > n {
		return layout{}, &ShapeError{Shape: shape, Channels: channels, Reason: "buffer shorter than shape"}
	}
	return l, nil
}

// Decode returns every candidate that clears the threshold and the class filter.
// The result is in candidate order; NMS is a separate step.
func (d *Decoder) Decode(output model.Tensor) ([]model.Detection, error) {
	if d.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", d.InputSize)
	}
	l, err := d.resolveLayout(output.Shape, len(output.Data))
	if err != nil {
		return nil, err
	}

	size := float64(d.InputSize)
	data := output.Data
	var detections []model.Detection

	for i := 0; i < l.candidates; i++ {
		bestScore := float32(math.Inf(-1))
		bestClass := -1
		for c := 4; c < l.channels; c++ {
			score := data[l.index(c, i)]
			if score > bestScore {
				bestScore = score
				bestClass = c - 4
			}
		}

		if bestClass < 0 || !finite(bestScore) || !(float64(bestScore) >= d.ConfidenceThreshold) {
			continue
		}
		if d.AllowedClasses != nil && !d.AllowedClasses[bestClass] {
			continue
		}

		rawCX, rawCY := data[l.index(0, i)], data[l.index(1, i)]
		rawW, rawH := data[l.index(2, i)], data[l.index(3, i)]
		if !finite(rawCX) || !finite(rawCY) || !finite(rawW) || !finite(rawH) {
			continue
		}
		cx, cy, w, h := float64(rawCX), float64(rawCY), float64(rawW), float64(rawH)

		box := model.Box{
			X: (cx - w/2) / size,
			Y: (cy - h/2) / size,
			W: w / size,
			H: h / size,
		}.Clip()
		if box.Area() == 0 {
			continue
		}

		detections = append(detections, model.Detection{
			ID:         uuid.New(),
			Box:        box,
			Confidence: math.Min(float64(bestScore), 1),
			ClassID:    bestClass,
			Label:      getClassLabel(d.Labels, bestClass),
		})
	}

	return detections, nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
