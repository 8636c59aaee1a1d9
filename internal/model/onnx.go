package model

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXLoader loads an ONNX image classifier with one [1, side, side, 3]
// input and one [1, classes] output.
type ONNXLoader struct {
	ModelPath   string
	LibraryPath string
}

func (l ONNXLoader) Load(ctx context.Context) (Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(l.ModelPath); err != nil {
		return nil, &ModelLoadError{Path: l.ModelPath, Err: err}
	}

	if l.LibraryPath != "" {
		ort.SetSharedLibraryPath(l.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, &ModelLoadError{Path: l.ModelPath, Err: fmt.Errorf("failed to initialize ONNX environment: %w", err)}
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(l.ModelPath)
	if err != nil {
		return nil, &ModelLoadError{Path: l.ModelPath, Err: fmt.Errorf("failed to read model signature: %w", err)}
	}
	metadata, err := metadataFromInfo(inputs, outputs)
	if err != nil {
		return nil, &ModelLoadError{Path: l.ModelPath, Err: err}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, &ModelLoadError{Path: l.ModelPath, Err: fmt.Errorf("failed to create input tensor: %w", err)}
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, &ModelLoadError{Path: l.ModelPath, Err: fmt.Errorf("failed to create output tensor: %w", err)}
	}

	session, err := ort.NewAdvancedSession(l.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, &ModelLoadError{Path: l.ModelPath, Err: fmt.Errorf("failed to create ONNX session: %w", err)}
	}

	return &onnxRuntime{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// metadataFromInfo discovers tensor names and the input side length. A
// dynamic or missing side falls back to 224.
func metadataFromInfo(inputs, outputs []ort.InputOutputInfo) (Metadata, error) {
	if len(inputs) != 1 || len(outputs) != 1 {
		return Metadata{}, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	if len(in.Dimensions) != 4 {
		return Metadata{}, fmt.Errorf("input %q has rank %d, want 4", in.Name, len(in.Dimensions))
	}
	if c := in.Dimensions[3]; c > 0 && c != channels {
		return Metadata{}, fmt.Errorf("input %q has %d channels, want %d", in.Name, c, channels)
	}
	side := int(in.Dimensions[1])
	if side <= 0 {
		side = defaultSide
	}

	if len(out.Dimensions) == 0 {
		return Metadata{}, fmt.Errorf("output %q has no dimensions", out.Name)
	}
	classes := out.Dimensions[len(out.Dimensions)-1]

	return Metadata{
		InputName:   in.Name,
		OutputName:  out.Name,
		InputShape:  []int64{1, int64(side), int64(side), channels},
		OutputShape: []int64{1, classes},
		ImageSize:   side,
	}, nil
}

type onnxRuntime struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func (r *onnxRuntime) Metadata() Metadata { return r.metadata }

func (r *onnxRuntime) Run(input []float32) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil, ErrNotInitialized
	}
	if len(input) != r.metadata.InputSize() {
		return nil, fmt.Errorf("expected %d input values, got %d", r.metadata.InputSize(), len(input))
	}
	copy(r.inputTensor.GetData(), input)

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := r.outputTensor.GetData()
	out := make([]float32, len(outputData))
	copy(out, outputData)
	return out, nil
}

func (r *onnxRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inputTensor != nil {
		r.inputTensor.Destroy()
		r.inputTensor = nil
	}
	if r.outputTensor != nil {
		r.outputTensor.Destroy()
		r.outputTensor = nil
	}
	var err error
	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}
	if ort.IsInitialized() {
		if derr := ort.DestroyEnvironment(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
