package model

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/webp"
)

// CapturedImage is a decoded capture. It is read-only once built.
type CapturedImage struct {
	img    image.Image
	format string
	source string
}

// NewCapturedImage wraps an already decoded image.
func NewCapturedImage(img image.Image, source string) *CapturedImage {
	return &CapturedImage{img: img, source: source}
}

// Image returns the pixel data.
func (c *CapturedImage) Image() image.Image { return c.img }

// Width returns the image width in pixels.
func (c *CapturedImage) Width() int { return c.img.Bounds().Dx() }

// Height returns the image height in pixels.
func (c *CapturedImage) Height() int { return c.img.Bounds().Dy() }

// Format is the encoding the image was decoded from, if any.
func (c *CapturedImage) Format() string { return c.format }

// Source describes where the image came from.
func (c *CapturedImage) Source() string { return c.source }

// Decode reads a JPEG, PNG or WebP image.
func Decode(r io.Reader, source string) (*CapturedImage, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	return &CapturedImage{img: img, format: format, source: source}, nil
}

// ImageSource yields a CapturedImage once analysis starts.
type ImageSource interface {
	Open(ctx context.Context) (*CapturedImage, error)
}

// FileSource decodes the image file at the given path.
type FileSource string

func (p FileSource) Open(ctx context.Context) (*CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(string(p))
	if err != nil {
		return nil, &DecodeError{Source: string(p), Err: err}
	}
	defer f.Close()
	return Decode(f, string(p))
}

// BytesSource decodes an encoded image held in memory.
type BytesSource []byte

func (b BytesSource) Open(ctx context.Context) (*CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(b), "upload")
}

// DecodedSource returns an ImageSource for an already decoded image.
func DecodedSource(img *CapturedImage) ImageSource {
	return decodedSource{img: img}
}

type decodedSource struct {
	img *CapturedImage
}

func (d decodedSource) Open(context.Context) (*CapturedImage, error) {
	return d.img, nil
}
