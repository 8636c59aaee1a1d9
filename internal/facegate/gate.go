// Package facegate rejects captures that show a human face instead of a
// banknote.
package facegate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/model"
)

// Detector counts the faces present in an image.
type Detector interface {
	CountFaces(ctx context.Context, img *model.CapturedImage) (int, error)
}

// DetectorError reports a detector fault. The gate absorbs it.
type DetectorError struct {
	Err error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("face detection failed: %v", e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// Gate holds only the detector handle.
type Gate struct {
	detector Detector
	logger   *zap.Logger
}

// New returns a gate over detector. A nil detector never reports a face.
func New(detector Detector, logger *zap.Logger) *Gate {
	return &Gate{detector: detector, logger: logger.Named("facegate")}
}

// HasFace reports whether img contains at least one face. Detector errors
// fail open: the gate logs them and returns false.
func (g *Gate) HasFace(ctx context.Context, img *model.CapturedImage) bool {
	if g.detector == nil || img == nil {
		return false
	}
	n, err := g.detector.CountFaces(ctx, img)
	if err != nil {
		g.logger.Warn("detector failed, allowing classification",
			zap.Error(&DetectorError{Err: err}),
			zap.String("source", img.Source()))
		return false
	}
	if n > 0 {
		g.logger.Info("face detected", zap.Int("faces", n))
	}
	return n > 0
}
