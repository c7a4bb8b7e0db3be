package model

import (
	"math"
	"time"

	"gopkg.in/guregu/null.v4"
)

const (
	// FuelGramsPerMinute is the idling fuel burn charged per minute in the lane.
	FuelGramsPerMinute = 12.0
	// CarbonGramsPerMinute is the CO2 emitted per idling minute.
	CarbonGramsPerMinute = 27.0
)

// CarEntry is one row of the recording API: a plate that entered and, once it
// leaves, the time it exited. The derived columns stay null while the car is in the lane.
type CarEntry struct {
	ID             int64      `json:"entry_id"`
	Plate          string     `json:"numberplate"`
	EnteredAt      time.Time  `json:"enter_timestamp"`
	ExitedAt       null.Time  `json:"exit_timestamp"`
	MinutesElapsed null.Float `json:"minutes_elapsed"`
	FuelUsed       null.Float `json:"fuel_used"`
	CarbonProduced null.Float `json:"carbon_produced"`
}

// Open reports whether the car has not exited yet.
func (e CarEntry) Open() bool {
	return !e.ExitedAt.Valid
}

// Derive fills the minutes, fuel and carbon columns from the timestamps.
func (e *CarEntry) Derive() {
	if !e.ExitedAt.Valid {
		e.MinutesElapsed = null.Float{}
		e.FuelUsed = null.Float{}
		e.CarbonProduced = null.Float{}
		return
	}
	minutes := e.ExitedAt.Time.Sub(e.EnteredAt).Minutes()
	e.MinutesElapsed = null.FloatFrom(round2(minutes))
	e.FuelUsed = null.FloatFrom(round2(minutes * FuelGramsPerMinute))
	e.CarbonProduced = null.FloatFrom(round2(minutes * CarbonGramsPerMinute))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Sighting represents a stored snapshot of a plate reading.
type Sighting struct {
	ID         int64     `json:"id"`
	Plate      string    `json:"plate"`
	Camera     string    `json:"camera"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Filename   string    `json:"filename"`
	Timestamp  time.Time `json:"timestamp"`
}
