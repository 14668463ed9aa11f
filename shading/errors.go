package shading

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by the pipeline matches exactly one of them
// with errors.Is.
var (
	// ErrInvalidParameter reports a parameter outside its allowed bound. It is
	// raised before any pixel is touched.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDecode reports input bytes that are not a readable image.
	ErrDecode = errors.New("decode failed")
	// ErrProcessing reports a failed pipeline stage.
	ErrProcessing = errors.New("processing failed")
	// ErrEncode reports an output image that could not be serialized.
	ErrEncode = errors.New("encode failed")
)

// Stage names a step of the pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageNormalize Stage = "normalize"
	StagePlan      Stage = "plan"
	StageDecode    Stage = "decode"
	StageResize    Stage = "resize"
	StageSmooth    Stage = "smooth"
	StageEdge      Stage = "edge"
	StageSaturate  Stage = "saturate"
	StageQuantize  Stage = "quantize"
	StageComposite Stage = "composite"
	StageEncode    Stage = "encode"
)

// ParameterError describes a single out-of-range parameter.
type ParameterError struct {
	// Field is the parameter name as used on the wire, e.g. "target_width".
	Field string
	// Value is the rejected value.
	Value interface{}
	// Min and Max are the inclusive bounds.
	Min, Max float64
}

// Error implements error.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s must be between %g and %g, got %v", e.Field, e.Min, e.Max, e.Value)
}

// Is makes a ParameterError match ErrInvalidParameter.
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// StageError is returned by the pipeline when a stage fails. It matches its Kind
// and its cause with errors.Is and errors.As.
type StageError struct {
	// Stage is the step that failed.
	Stage Stage
	// Kind is one of the package error kinds.
	Kind error
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageError(stage Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the failed stage of a pipeline error, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
