package model

import "fmt"

// Tensor is a flat float buffer plus its shape.
type Tensor struct {
	Data  []float32
	Shape []int
}

// Elements returns the product of all dimensions.
func (t Tensor) Elements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v(%d values)", t.Shape, len(t.Data))
}
