package ai

import (
	"fmt"
	"strings"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

// Channel identifies one color component.
type Channel int

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
)

// ParseChannelOrder turns strings like "RGB" or "bgr" into a channel order.
func ParseChannelOrder(s string) ([3]Channel, error) {
	var order [3]Channel
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return order, fmt.Errorf("channel order %q must name three channels", s)
	}
	seen := map[rune]bool{}
	for i, c := range s {
		if seen[c] {
			return order, fmt.Errorf("channel order %q repeats %c", s, c)
		}
		seen[c] = true
		switch c {
		case 'R':
			order[i] = ChannelR
		case 'G':
			order[i] = ChannelG
		case 'B':
			order[i] = ChannelB
		default:
			return order, fmt.Errorf("channel order %q has unknown channel %c", s, c)
		}
	}
	return order, nil
}

// Preprocessor stretches a frame to the model's square input with nearest-neighbor
// sampling (aspect ratio is not kept) and writes a planar [1,3,S,S] tensor in [0,1].
type Preprocessor struct {
	InputSize int
	Order     [3]Channel
}

// NewPreprocessor creates a preprocessor for a square input of the given size.
func NewPreprocessor(inputSize int, order [3]Channel) *Preprocessor {
	return &Preprocessor{InputSize: inputSize, Order: order}
}

// Preprocess converts the frame into the input tensor.
func (p *Preprocessor) Preprocess(frame *model.Frame) (model.Tensor, error) {
	if p.InputSize <= 0 {
		return model.Tensor{}, fmt.Errorf("invalid input size %d", p.InputSize)
	}
	if err := frame.Validate(); err != nil {
		return model.Tensor{}, err
	}

	size := p.InputSize
	plane := size * size
	out := make([]float32, 3*plane)

	bpp := frame.Format.BytesPerPixel()
	ro, gro, bo := frame.Format.Offsets()
	var offsets [3]int
	for i, ch := range p.Order {
		switch ch {
		case ChannelR:
			offsets[i] = ro
		case ChannelG:
			offsets[i] = gro
		case ChannelB:
			offsets[i] = bo
		}
	}

	scaleX := float64(frame.Width) / float64(size)
	scaleY := float64(frame.Height) / float64(size)

	for y := 0; y < size; y++ {
		srcY := min(int(float64(y)*scaleY), frame.Height-1)
		row := srcY * frame.Stride
		for x := 0; x < size; x++ {
			srcX := min(int(float64(x)*scaleX), frame.Width-1)
			px := row + srcX*bpp
			idx := y*size + x
			out[idx] = float32(frame.Data[px+offsets[0]]) / 255
			out[plane+idx] = float32(frame.Data[px+offsets[1]]) / 255
			out[2*plane+idx] = float32(frame.Data[px+offsets[2]]) / 255
		}
	}

	return model.Tensor{Data: out, Shape: []int{1, 3, size, size}}, nil
}
