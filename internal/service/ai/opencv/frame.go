package opencv

import (
	"fmt"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"

	"gocv.io/x/gocv"
)

// DecodeFrame decodes a JPEG/PNG camera image into a packed BGR frame.
func DecodeFrame(imageBytes []byte, camera string) (*model.Frame, error) {
	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	frame := model.NewFrame(mat.ToBytes(), mat.Cols(), mat.Rows(), model.PixelBGR, camera)
	frame.Timestamp = time.Now()
	return frame, nil
}
