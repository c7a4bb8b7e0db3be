package model

import (
	"math"

	"github.com/google/uuid"
)

// Box is an axis-aligned rectangle in normalized [0,1] coordinates with a
// top-left origin and y growing downward.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns w*h, or 0 for degenerate boxes.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Intersect returns the overlap of two boxes. Disjoint boxes yield a zero box.
func (b Box) Intersect(o Box) Box {
	x0 := max(b.X, o.X)
	y0 := max(b.Y, o.Y)
	x1 := min(b.X+b.W, o.X+o.W)
	y1 := min(b.Y+b.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Box{}
	}
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// IOU is intersection area over union area; 0 for disjoint boxes.
func (b Box) IOU(o Box) float64 {
	inter := b.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Unit is the full frame.
var Unit = Box{X: 0, Y: 0, W: 1, H: 1}

// Clip shrinks the box to the unit square, keeping whatever part lies inside.
func (b Box) Clip() Box {
	x0 := clamp01(b.X)
	y0 := clamp01(b.Y)
	x1 := clamp01(b.X + b.W)
	y1 := clamp01(b.Y + b.H)
	return Box{X: x0, Y: y0, W: max(0, x1-x0), H: max(0, y1-y0)}
}

// Inside reports whether the box lies fully within the unit square.
func (b Box) Inside() bool {
	return b.X >= 0 && b.Y >= 0 && b.W >= 0 && b.H >= 0 && b.X+b.W <= 1+1e-9 && b.Y+b.H <= 1+1e-9
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Detection is one kept object with an optional plate reading.
type Detection struct {
	ID         uuid.UUID `json:"id"`
	Box        Box       `json:"box"`
	Confidence float64   `json:"confidence"`
	ClassID    int       `json:"class_id"`
	Label      string    `json:"label"`
	PlateText  string    `json:"plate_text,omitempty"`
}

// HasPlate reports whether OCR produced a reading for this detection.
func (d Detection) HasPlate() bool {
	return d.PlateText != ""
}

// OCRCandidate is one recognized string for a single region query.
type OCRCandidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
