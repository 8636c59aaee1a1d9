// Package dlibface detects faces with dlib's HOG frontal face detector.
package dlibface

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/Brownie44l1/ningapi/internal/model"
)

// Detector wraps a go-face recognizer. Only face rectangles are used, but
// go-face has no detection-only call: Recognize also computes landmarks and
// a 128-d descriptor for every face it finds.
type Detector struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// New loads the dlib models from modelDir.
func New(modelDir string) (*Detector, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models from %s: %w", modelDir, err)
	}
	return &Detector{rec: rec}, nil
}

// CountFaces returns the number of faces found in img.
func (d *Detector) CountFaces(ctx context.Context, img *model.CapturedImage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.Image(), &jpeg.Options{Quality: 85}); err != nil {
		return 0, fmt.Errorf("failed to encode image: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec == nil {
		return 0, fmt.Errorf("detector closed")
	}
	faces, err := d.rec.Recognize(buf.Bytes())
	if err != nil {
		return 0, err
	}
	return len(faces), nil
}

// Close frees the dlib models.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
}
