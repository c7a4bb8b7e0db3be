package model

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// PixelFormat describes the byte layout of a single pixel in a Frame buffer.
type PixelFormat int

const (
	PixelBGR PixelFormat = iota
	PixelBGRA
	PixelRGB
	PixelRGBA
)

// BytesPerPixel returns how many bytes one pixel occupies.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelBGRA, PixelRGBA:
		return 4
	default:
		return 3
	}
}

// Offsets returns the byte offsets of the red, green and blue components inside a pixel.
func (f PixelFormat) Offsets() (r, g, b int) {
	switch f {
	case PixelRGB, PixelRGBA:
		return 0, 1, 2
	default:
		return 2, 1, 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case PixelBGR:
		return "BGR"
	case PixelBGRA:
		return "BGRA"
	case PixelRGB:
		return "RGB"
	case PixelRGBA:
		return "RGBA"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Frame is one raw camera frame. Stride is the length of a row in bytes and may
// be larger than Width*BytesPerPixel when rows are padded.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Stride    int
	Format    PixelFormat
	Camera    string
	Timestamp time.Time
	// Encoded is the compressed image as received from the camera. Frames
	// fresh off the network carry only this until they are decoded.
	Encoded []byte

	imgOnce sync.Once
	img     *image.NRGBA
}

// NewFrame builds a tightly packed frame (stride = width * pixel size).
func NewFrame(data []byte, width, height int, format PixelFormat, camera string) *Frame {
	return &Frame{
		Data:      data,
		Width:     width,
		Height:    height,
		Stride:    width * format.BytesPerPixel(),
		Format:    format,
		Camera:    camera,
		Timestamp: time.Now(),
	}
}

// Validate checks that the buffer is large enough for the declared geometry.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*f.Format.BytesPerPixel() {
		return fmt.Errorf("stride %d shorter than row of %d %s pixels", f.Stride, f.Width, f.Format)
	}
	need := (f.Height-1)*f.Stride + f.Width*f.Format.BytesPerPixel()
	if len(f.Data) < need {
		return fmt.Errorf("frame buffer too small: have %d bytes, need %d", len(f.Data), need)
	}
	return nil
}

// Image converts the frame to an image.Image. The conversion happens once per frame
// and the result is shared by every caller, so it must be treated as read-only.
func (f *Frame) Image() image.Image {
	f.imgOnce.Do(func() {
		img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
		if f.Validate() != nil {
			f.img = img
			return
		}
		bpp := f.Format.BytesPerPixel()
		ro, gro, bo := f.Format.Offsets()
		for y := 0; y < f.Height; y++ {
			row := f.Data[y*f.Stride:]
			for x := 0; x < f.Width; x++ {
				p := row[x*bpp:]
				img.SetNRGBA(x, y, color.NRGBA{R: p[ro], G: p[gro], B: p[bo], A: 255})
			}
		}
		f.img = img
	})
	return f.img
}

// PixelRect converts a normalized box into a pixel rectangle of this frame.
func (f *Frame) PixelRect(b Box) image.Rectangle {
	x0 := int(b.X * float64(f.Width))
	y0 := int(b.Y * float64(f.Height))
	x1 := int((b.X + b.W) * float64(f.Width))
	y1 := int((b.Y + b.H) * float64(f.Height))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, f.Width, f.Height))
}
