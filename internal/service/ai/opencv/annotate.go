package opencv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"

	"gocv.io/x/gocv"
)

var (
	boxColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	plateColor = color.RGBA{R: 255, G: 220, B: 0, A: 0}
)

// Annotate draws detection boxes, labels and plate readings on the frame and
// returns the result as JPEG.
func Annotate(frame *model.Frame, detections []model.Detection) ([]byte, error) {
	mat, err := frameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	for _, detection := range detections {
		rect := frame.PixelRect(detection.Box)
		if err := gocv.Rectangle(&mat, rect, boxColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Label, detection.Confidence)
		if err := gocv.PutText(&mat, label, image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}

		if detection.HasPlate() {
			pt := image.Pt(rect.Min.X, rect.Max.Y+18)
			if err := gocv.PutText(&mat, detection.PlateText, pt, gocv.FontHersheySimplex, 0.7, plateColor, 2); err != nil {
				return nil, fmt.Errorf("failed to draw plate text: %v", err)
			}
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())
	return finalImage, nil
}

// frameToMat copies the frame into a BGR Mat.
func frameToMat(frame *model.Frame) (gocv.Mat, error) {
	if frame.Format == model.PixelBGR && frame.Stride == frame.Width*3 {
		mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data[:frame.Height*frame.Stride])
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("failed to wrap frame: %v", err)
		}
		defer mat.Close()
		return mat.Clone(), nil
	}

	mat, err := gocv.ImageToMatRGB(frame.Image())
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert frame: %v", err)
	}
	return mat, nil
}
