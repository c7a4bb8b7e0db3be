package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrModelLoad means the backend could not be created; the pipeline must stay disabled.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference is returned when a forward pass fails for one frame.
	ErrInference = errors.New("inference failed")
	// ErrDecodeShape is returned when the output tensor layout is not recognized.
	ErrDecodeShape = errors.New("unrecognized output shape")
)

// ShapeError reports an output shape the decoder cannot interpret.
type ShapeError struct {
	Shape    []int
	Channels int
	Reason   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: shape %v (expected one axis of %d): %s", ErrDecodeShape, e.Shape, e.Channels, e.Reason)
}

func (e *ShapeError) Unwrap() error {
	return ErrDecodeShape
}
