package ai

import (
	"sort"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

// NonMaxSuppression keeps the highest-confidence box of every overlapping group.
// Candidates are sorted by confidence (stable, so ties keep their input order) and a
// candidate survives only if its IOU with every kept box is at most threshold.
// The result stays in descending confidence order.
func NonMaxSuppression(detections []model.Detection, threshold float64) []model.Detection {
	sorted := make([]model.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]model.Detection, 0, len(sorted))
	for _, candidate := range sorted {
		keep := true
		for _, existing := range kept {
			if candidate.Box.IOU(existing.Box) > threshold {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, candidate)
		}
	}
	return kept
}
