// Package onnx runs detection models through the ONNX Runtime shared library.
// Sessions are built for one fixed input and output shape, so the output shape
// must be known up front (for YOLO exports typically [1,84,8400]).
package onnx

import (
	"context"
	"fmt"
	"sync"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai"

	ort "github.com/yalue/onnxruntime_go"
)

// Options configures the session.
type Options struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	InputSize   int
	OutputShape []int
	Threads     int
}

// Backend is an ai.Backend on top of an onnxruntime AdvancedSession.
type Backend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	logger  *logger.Logger
	mu      sync.Mutex
}

var envOnce sync.Once
var envErr error

func initializeEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// NewBackend creates the session. Failures wrap ai.ErrModelLoad.
func NewBackend(opts Options, logger *logger.Logger) (*Backend, error) {
	if err := initializeEnvironment(opts.LibraryPath); err != nil {
		return nil, fmt.Errorf("%w: onnxruntime init: %v", ai.ErrModelLoad, err)
	}
	if len(opts.OutputShape) == 0 {
		return nil, fmt.Errorf("%w: output shape is required", ai.ErrModelLoad)
	}

	size := int64(opts.InputSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), make([]float32, 3*opts.InputSize*opts.InputSize))
	if err != nil {
		return nil, fmt.Errorf("%w: input tensor: %v", ai.ErrModelLoad, err)
	}

	dims := make([]int64, len(opts.OutputShape))
	for i, d := range opts.OutputShape {
		dims[i] = int64(d)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(dims...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("%w: output tensor: %v", ai.ErrModelLoad, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: session options: %v", ai.ErrModelLoad, err)
	}
	defer options.Destroy()

	if opts.Threads > 0 {
		options.SetIntraOpNumThreads(opts.Threads)
		options.SetInterOpNumThreads(1)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: session: %v", ai.ErrModelLoad, err)
	}

	logger.Info("ONNX Runtime session ready for %s (output %v)", opts.ModelPath, opts.OutputShape)
	return &Backend{session: session, input: input, output: output, logger: logger}, nil
}

// Forward copies the tensor into the session input, runs it and copies the output out.
func (b *Backend) Forward(ctx context.Context, input model.Tensor) (model.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return model.Tensor{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dst := b.input.GetData()
	if len(input.Data) != len(dst) {
		return model.Tensor{}, fmt.Errorf("%w: input has %d values, session expects %d", ai.ErrInference, len(input.Data), len(dst))
	}
	copy(dst, input.Data)

	if err := b.session.Run(); err != nil {
		return model.Tensor{}, fmt.Errorf("%w: %v", ai.ErrInference, err)
	}

	src := b.output.GetData()
	data := make([]float32, len(src))
	copy(data, src)

	dims := b.output.GetShape()
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return model.Tensor{Data: data, Shape: shape}, nil
}

// Close destroys the session and its tensors.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.session.Destroy()
	b.input.Destroy()
	b.output.Destroy()
	return err
}
