// Package tesseract runs plate OCR on-device through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

const (
	plateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789- "
	// Crops shorter than this are upscaled before recognition.
	minCropHeight = 64
	cropContrast  = 0.4
)

type Engine struct {
	language       string
	tessdataPrefix string
}

func NewEngine(language, tessdataPrefix string) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{language: language, tessdataPrefix: tessdataPrefix}
}

// Recognize crops region out of frame and returns one candidate per text line.
func (e *Engine) Recognize(ctx context.Context, frame *model.Frame, region model.Box) ([]model.OCRCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crop, err := cropRegion(frame, region)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, crop, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encode crop: %v", ocr.ErrEngine, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("%w: tessdata prefix: %v", ocr.ErrEngine, err)
		}
	}
	if err := client.SetLanguage(e.language); err != nil {
		return nil, fmt.Errorf("%w: language: %v", ocr.ErrEngine, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("%w: page seg mode: %v", ocr.ErrEngine, err)
	}
	if err := client.SetWhitelist(plateWhitelist); err != nil {
		return nil, fmt.Errorf("%w: whitelist: %v", ocr.ErrEngine, err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", ocr.ErrEngine, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrEngine, err)
	}

	candidates := make([]model.OCRCandidate, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		candidates = append(candidates, model.OCRCandidate{
			Text:       text,
			Confidence: box.Confidence / 100.0,
		})
	}
	return candidates, nil
}

func cropRegion(frame *model.Frame, region model.Box) (image.Image, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrEngine, err)
	}
	rect := frame.PixelRect(region)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty region %v", ocr.ErrEngine, region)
	}

	crop := imaging.Crop(frame.Image(), rect)
	if crop.Bounds().Dy() < minCropHeight {
		crop = imaging.Resize(crop, 0, minCropHeight, imaging.Lanczos)
	}
	return adjust.Contrast(imaging.Grayscale(crop), cropContrast), nil
}
