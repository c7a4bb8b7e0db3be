package tesseract

import (
	"errors"
	"testing"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
)

func TestCropRegion(t *testing.T) {
	frame := model.NewFrame(make([]byte, 200*100*3), 200, 100, model.PixelRGB, "gate")

	crop, err := cropRegion(frame, model.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.5})
	if err != nil {
		t.Fatalf("cropRegion: %v", err)
	}
	if h := crop.Bounds().Dy(); h != minCropHeight {
		t.Errorf("crop height = %d, want upscaled to %d", h, minCropHeight)
	}
	if w := crop.Bounds().Dx(); w <= 100 {
		t.Errorf("crop width = %d, want aspect preserved above 100", w)
	}
}

func TestCropRegion_Empty(t *testing.T) {
	frame := model.NewFrame(make([]byte, 10*10*3), 10, 10, model.PixelRGB, "gate")
	if _, err := cropRegion(frame, model.Box{X: 0.5, Y: 0.5}); !errors.Is(err, ocr.ErrEngine) {
		t.Errorf("err = %v, want ErrEngine", err)
	}
}
