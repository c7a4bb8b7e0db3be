package ocr

import "github.com/BalaMeghanaShivani/CarbonLane/internal/model"

// DefaultRegionFraction keeps the bottom half of a vehicle box.
const DefaultRegionFraction = 0.5

// RegionSelector derives the OCR query region from a vehicle box.
type RegionSelector struct {
	// Fraction is the share of the box height, measured from the bottom edge, that is kept.
	Fraction float64
}

func NewRegionSelector(fraction float64) RegionSelector {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultRegionFraction
	}
	return RegionSelector{Fraction: fraction}
}

// Select returns the lower Fraction of box clipped to the frame.
func (s RegionSelector) Select(box model.Box) model.Box {
	h := box.H * s.Fraction
	region := model.Box{X: box.X, Y: box.Y + box.H - h, W: box.W, H: h}
	return region.Intersect(model.Unit)
}
