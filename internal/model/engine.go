package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Runtime is a loaded model ready for inference.
type Runtime interface {
	Metadata() Metadata
	// Run takes an NHWC input of Metadata().InputSize() floats and returns
	// one score per class.
	Run(input []float32) ([]float32, error)
	Close() error
}

// Loader opens the model artifact.
type Loader interface {
	Load(ctx context.Context) (Runtime, error)
}

// Engine owns the loaded model and turns images into classification
// results. Safe for concurrent use.
type Engine struct {
	loader Loader
	labels LabelTable
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu  sync.RWMutex
	rt  Runtime
	pre Preprocessor
}

// NewEngine returns an engine that loads its model lazily through loader.
func NewEngine(loader Loader, logger *zap.Logger) *Engine {
	return &Engine{
		loader: loader,
		labels: DefaultLabels(),
		logger: logger.Named("classifier"),
		now:    time.Now,
	}
}

// Initialize loads the model once. Concurrent callers share one load; a
// call on an initialized engine is a no-op. The shared load does not end
// when the caller that started it gives up.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.Ready() {
		return nil
	}
	_, err, _ := e.group.Do("initialize", func() (any, error) {
		return nil, e.load(context.WithoutCancel(ctx))
	})
	return err
}

func (e *Engine) load(ctx context.Context) error {
	if e.Ready() {
		return nil
	}

	rt, err := e.loader.Load(ctx)
	if err != nil {
		var loadErr *ModelLoadError
		if !errors.As(err, &loadErr) {
			err = &ModelLoadError{Err: err}
		}
		e.logger.Error("model load failed", zap.Error(err))
		return err
	}

	md := rt.Metadata()
	if md.OutputSize() != e.labels.Len() {
		rt.Close()
		err := &ModelLoadError{Err: fmt.Errorf("output arity %d does not match %d labels", md.OutputSize(), e.labels.Len())}
		e.logger.Error("model rejected", zap.Error(err))
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rt != nil {
		rt.Close()
		return nil
	}
	e.rt = rt
	e.pre = NewPreprocessor(md.ImageSize)
	e.logger.Info("model loaded",
		zap.Int("input_side", e.pre.Side()),
		zap.Strings("labels", e.labels.All()))
	return nil
}

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rt != nil
}

// InputSide returns the discovered input side length, or 0 before loading.
func (e *Engine) InputSide() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.rt == nil {
		return 0
	}
	return e.pre.Side()
}

// Labels returns the label table.
func (e *Engine) Labels() LabelTable { return e.labels }

// Classify runs the model on img. An uninitialized engine attempts one
// load per call; a failed load is reported as an InferenceError wrapping
// the ModelLoadError.
func (e *Engine) Classify(ctx context.Context, img *CapturedImage) (*ClassificationResult, error) {
	if img == nil || img.Image() == nil {
		return nil, &InferenceError{Err: errors.New("no image")}
	}
	if err := e.Initialize(ctx); err != nil {
		return nil, &InferenceError{Err: err}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.rt == nil {
		return nil, &InferenceError{Err: ErrNotInitialized}
	}

	tensor := e.pre.Process(img.Image())
	if err := ctx.Err(); err != nil {
		return nil, &InferenceError{Err: err}
	}

	output, err := e.rt.Run(tensor.Data)
	if err != nil {
		e.logger.Error("inference failed", zap.Error(err))
		return nil, &InferenceError{Err: err}
	}
	e.logger.Debug("model output", zap.Float32s("probabilities", output))

	result, err := Decide(e.labels, output, e.now())
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	e.logger.Info("classified",
		zap.String("denomination", result.Denomination),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// Dispose releases the model. A later Classify loads it again.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rt == nil {
		return nil
	}
	err := e.rt.Close()
	e.rt = nil
	return err
}
