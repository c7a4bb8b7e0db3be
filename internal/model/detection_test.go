package model

import (
	"math"
	"testing"
	"time"

	"gopkg.in/guregu/null.v4"
)

func TestBoxIOU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Box
		expected float64
	}{
		{"identical", Box{0.1, 0.1, 0.2, 0.2}, Box{0.1, 0.1, 0.2, 0.2}, 1},
		{"disjoint", Box{0, 0, 0.1, 0.1}, Box{0.5, 0.5, 0.1, 0.1}, 0},
		{"touching edges", Box{0, 0, 0.5, 0.5}, Box{0.5, 0, 0.5, 0.5}, 0},
		{"half overlap", Box{0, 0, 0.2, 0.2}, Box{0.1, 0, 0.2, 0.2}, 0.02 / 0.06},
		{"contained", Box{0, 0, 0.4, 0.4}, Box{0.1, 0.1, 0.2, 0.2}, 0.04 / 0.16},
		{"degenerate", Box{0, 0, 0, 0.5}, Box{0, 0, 0.5, 0.5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.IOU(tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("IOU = %f, expected %f", got, tt.expected)
			}
			if back := tt.b.IOU(tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("IOU is not symmetric: %f vs %f", got, back)
			}
		})
	}
}

func TestBoxClip(t *testing.T) {
	tests := []struct {
		name     string
		in       Box
		expected Box
	}{
		{"inside", Box{0.2, 0.2, 0.3, 0.3}, Box{0.2, 0.2, 0.3, 0.3}},
		{"left overflow", Box{-0.1, 0.2, 0.3, 0.3}, Box{0, 0.2, 0.2, 0.3}},
		{"bottom overflow", Box{0.5, 0.8, 0.2, 0.4}, Box{0.5, 0.8, 0.2, 0.2}},
		{"fully outside", Box{1.2, 1.2, 0.3, 0.3}, Box{1, 1, 0, 0}},
		{"NaN origin", Box{math.NaN(), 0.2, 0.3, 0.3}, Box{0, 0.2, 0, 0.3}},
		{"infinite width", Box{0.2, 0.2, math.Inf(1), 0.3}, Box{0.2, 0.2, 0.8, 0.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clip()
			if math.Abs(got.X-tt.expected.X) > 1e-9 || math.Abs(got.Y-tt.expected.Y) > 1e-9 ||
				math.Abs(got.W-tt.expected.W) > 1e-9 || math.Abs(got.H-tt.expected.H) > 1e-9 {
				t.Errorf("Clip(%+v) = %+v, expected %+v", tt.in, got, tt.expected)
			}
			if !got.Inside() {
				t.Errorf("clipped box %+v is outside the unit square", got)
			}
		})
	}
}

func TestFrameValidate(t *testing.T) {
	frame := &Frame{Data: make([]byte, 10*4*3), Width: 4, Height: 3, Stride: 10, Format: PixelBGR}
	if err := frame.Validate(); err != nil {
		t.Errorf("padded frame should be valid: %v", err)
	}

	short := &Frame{Data: make([]byte, 10), Width: 4, Height: 3, Stride: 12, Format: PixelBGR}
	if err := short.Validate(); err == nil {
		t.Error("expected error for short buffer")
	}

	narrow := &Frame{Data: make([]byte, 100), Width: 4, Height: 3, Stride: 8, Format: PixelBGR}
	if err := narrow.Validate(); err == nil {
		t.Error("expected error for stride shorter than a row")
	}
}

func TestFrameImage_PaddedBGRA(t *testing.T) {
	// 2x2 BGRA with 4 padding bytes per row
	stride := 2*4 + 4
	data := make([]byte, stride*2)
	// pixel (1,1): B=10 G=20 R=30
	copy(data[stride+4:], []byte{10, 20, 30, 255})

	frame := &Frame{Data: data, Width: 2, Height: 2, Stride: stride, Format: PixelBGRA}
	img := frame.Image()

	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 != 30 || g>>8 != 20 || b>>8 != 10 {
		t.Errorf("pixel (1,1) = (%d,%d,%d), expected (30,20,10)", r>>8, g>>8, b>>8)
	}
	if img != frame.Image() {
		t.Error("Image should be converted once and reused")
	}
}

func TestFramePixelRect(t *testing.T) {
	frame := NewFrame(make([]byte, 200*100*3), 200, 100, PixelBGR, "cam1")
	rect := frame.PixelRect(Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.5})
	if rect.Min.X != 50 || rect.Min.Y != 50 || rect.Max.X != 150 || rect.Max.Y != 100 {
		t.Errorf("unexpected rect %v", rect)
	}
}

func TestCarEntryDerive(t *testing.T) {
	entered := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := CarEntry{Plate: "AB12CD", EnteredAt: entered}
	e.Derive()
	if e.MinutesElapsed.Valid || e.CarbonProduced.Valid {
		t.Fatal("open entry must not carry derived values")
	}

	e.ExitedAt = null.TimeFrom(entered.Add(2*time.Minute + 30*time.Second))
	e.Derive()
	if e.MinutesElapsed.Float64 != 2.5 || e.FuelUsed.Float64 != 30 || e.CarbonProduced.Float64 != 67.5 {
		t.Errorf("derived = %v %v %v", e.MinutesElapsed, e.FuelUsed, e.CarbonProduced)
	}
	if e.Open() {
		t.Error("entry with exit time should not be open")
	}
}
