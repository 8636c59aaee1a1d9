package model

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is wrapped in an InferenceError when no model is loaded.
var ErrNotInitialized = errors.New("model: engine not initialized")

// ModelLoadError reports a missing, corrupt or incompatible model artifact.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("model load failed (%s): %v", e.Path, e.Err)
	}
	return fmt.Sprintf("model load failed: %v", e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// DecodeError reports an unreadable captured image.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("image decode failed (%s): %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError reports an engine that is not ready or a runtime failure.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
