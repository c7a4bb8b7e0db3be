package opencv

import (
	"fmt"
	"image"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai"

	"gocv.io/x/gocv"
)

// BlobPreprocessor builds the model input with OpenCV: nearest-neighbor resize to
// the square input, then BlobFromImage scaled to [0,1]. Only RGB and BGR planar
// orders are supported.
type BlobPreprocessor struct {
	inputSize int
	swapRB    bool
}

// NewBlobPreprocessor creates a preprocessor for the given input size and channel order.
func NewBlobPreprocessor(inputSize int, order [3]ai.Channel) (*BlobPreprocessor, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", inputSize)
	}
	switch order {
	case [3]ai.Channel{ai.ChannelR, ai.ChannelG, ai.ChannelB}:
		return &BlobPreprocessor{inputSize: inputSize, swapRB: true}, nil
	case [3]ai.Channel{ai.ChannelB, ai.ChannelG, ai.ChannelR}:
		return &BlobPreprocessor{inputSize: inputSize}, nil
	default:
		return nil, fmt.Errorf("channel order %v not supported by OpenCV blobs", order)
	}
}

// Preprocess converts the frame into a [1,3,S,S] tensor.
func (p *BlobPreprocessor) Preprocess(frame *model.Frame) (model.Tensor, error) {
	if err := frame.Validate(); err != nil {
		return model.Tensor{}, err
	}

	mat, err := frameToMat(frame)
	if err != nil {
		return model.Tensor{}, err
	}
	defer mat.Close()

	size := image.Pt(p.inputSize, p.inputSize)
	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(mat, &resized, size, 0, 0, gocv.InterpolationNearestNeighbor); err != nil {
		return model.Tensor{}, fmt.Errorf("failed to resize frame: %v", err)
	}

	// frameToMat yields BGR, so RGB models need the swap.
	blob := gocv.BlobFromImage(resized, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), p.swapRB, false)
	defer blob.Close()

	values, err := blob.DataPtrFloat32()
	if err != nil {
		return model.Tensor{}, fmt.Errorf("failed to read blob: %v", err)
	}
	data := make([]float32, len(values))
	copy(data, values)
	return model.Tensor{Data: data, Shape: []int{1, 3, p.inputSize, p.inputSize}}, nil
}
