package opencv

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai"

	"gocv.io/x/gocv"
)

// NetBackend runs an ONNX (or any OpenCV-readable) detection model through gocv's DNN module.
type NetBackend struct {
	net       gocv.Net
	modelPath string
	logger    *logger.Logger
	mu        sync.Mutex
}

// NewNetBackend loads the network. Failures wrap ai.ErrModelLoad.
func NewNetBackend(modelPath string, logger *logger.Logger) (*NetBackend, error) {
	b := &NetBackend{modelPath: modelPath, logger: logger}
	if err := b.initializeNet(); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrModelLoad, err)
	}
	return b, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (b *NetBackend) initializeNet() error {
	if _, err := os.Stat(b.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", b.modelPath)
	}

	net := gocv.ReadNet(b.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", b.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	b.net = net
	b.logger.Info("Detection network loaded from %s", b.modelPath)
	return nil
}

// Forward feeds the tensor as a blob and returns the first output layer.
func (b *NetBackend) Forward(ctx context.Context, input model.Tensor) (model.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return model.Tensor{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	blob, err := gocv.NewMatWithSizesFromBytes(input.Shape, gocv.MatTypeCV32F, float32Bytes(input.Data))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("%w: failed to build input blob: %v", ai.ErrInference, err)
	}
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return model.Tensor{}, fmt.Errorf("%w: empty network output", ai.ErrInference)
	}

	values, err := output.DataPtrFloat32()
	if err != nil {
		return model.Tensor{}, fmt.Errorf("%w: failed to read network output: %v", ai.ErrInference, err)
	}

	data := make([]float32, len(values))
	copy(data, values)
	return model.Tensor{Data: data, Shape: output.Size()}, nil
}

// Close releases the network.
func (b *NetBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.net.Close()
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}
