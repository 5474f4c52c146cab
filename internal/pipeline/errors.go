package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidImage means the upload could not be decoded as an image or
	// violated the size/type limits. No pipeline steps run after it.
	ErrInvalidImage = errors.New("invalid image")

	// ErrModelUnavailable means the detector (or classifier) is not loaded
	// or not reachable. The service keeps running and reports the condition
	// through the readiness probe.
	ErrModelUnavailable = errors.New("detection model unavailable")
)

// Stage identifies where in the pipeline an inference error occurred.
type Stage string

const (
	StageDetect   Stage = "detect"
	StageClassify Stage = "classify"
)

// InferenceError wraps a model-runtime failure with the stage it happened in.
// A detection-stage error aborts the whole request; a classification-stage
// error is recovered per crop by the analyzer and never reaches the caller.
type InferenceError struct {
	Stage Stage
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at stage %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
