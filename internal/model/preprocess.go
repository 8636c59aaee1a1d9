package model

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

const (
	channels    = 3
	defaultSide = 224
)

// Tensor is a [1, side, side, 3] float32 buffer, RGB interleaved per pixel.
type Tensor struct {
	Side int
	Data []float32
}

// Shape returns the NHWC shape of the tensor.
func (t Tensor) Shape() []int64 {
	return []int64{1, int64(t.Side), int64(t.Side), channels}
}

// Bytes serializes the tensor as 4-byte IEEE floats in native byte order.
func (t Tensor) Bytes() []byte {
	buf := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.NativeEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// Preprocessor converts images into model input tensors.
type Preprocessor struct {
	side int
}

// NewPreprocessor returns a preprocessor for a square input of side pixels.
func NewPreprocessor(side int) Preprocessor {
	if side <= 0 {
		side = defaultSide
	}
	return Preprocessor{side: side}
}

// Side returns the target side length.
func (p Preprocessor) Side() int { return p.side }

// Process resizes img to side x side with bilinear filtering and maps every
// channel to c/127.5 - 1.
func (p Preprocessor) Process(img image.Image) Tensor {
	data := make([]float32, p.side*p.side*channels)
	p.ProcessInto(data, img)
	return Tensor{Side: p.side, Data: data}
}

// ProcessInto writes the tensor for img into dst, which must hold
// side*side*3 values.
func (p Preprocessor) ProcessInto(dst []float32, img image.Image) {
	resized := img
	b := img.Bounds()
	if b.Dx() != p.side || b.Dy() != p.side {
		resized = resize.Resize(uint(p.side), uint(p.side), img, resize.Bilinear)
	}

	bounds := resized.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(resized.At(x, y)).(color.NRGBA)
			dst[i] = normalize(c.R)
			dst[i+1] = normalize(c.G)
			dst[i+2] = normalize(c.B)
			i += channels
		}
	}
}

func normalize(c uint8) float32 {
	return float32(c)/127.5 - 1.0
}
