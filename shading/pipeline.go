package shading

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/quantize"
)

// Pipeline runs the cell-shading stages on a Backend. A Pipeline holds no
// per-invocation state and may be shared between goroutines.
type Pipeline struct {
	backend Backend
	logger  zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline on the given backend.
func New(backend Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend: backend,
		logger:  log.With().Str("component", "shading").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("backend", backend.Name()).Logger()
	return p
}

// Backend returns the backend the pipeline runs on.
func (p *Pipeline) Backend() Backend {
	return p.backend
}

// Result is the outcome of one invocation. The intermediate buffers are kept for
// inspection; Saturated is the same buffer as Smoothed when saturation is 1.0.
type Result struct {
	// Image is the final composited image.
	Image *images.BGR
	// Params are the normalized parameters that were applied.
	Params Parameters
	// Plan is the output size decision.
	Plan DimensionPlan
	// Smoothed is the bilateral filter output.
	Smoothed *images.BGR
	// Saturated is the quantizer input.
	Saturated *images.BGR
	// Mask is the edge mask derived from Smoothed.
	Mask *images.Mask
	// Posterized is the quantizer output before compositing.
	Posterized *images.BGR
	// Timings holds per-stage durations.
	Timings Timings
}

// Process cell-shades a decoded image.
//
// The parameters are normalized and the output size planned before any pixel is
// touched, so an invalid target fails without work. The image is resized when the
// plan differs from its size, smoothed once, and that single smoothed buffer feeds
// both the edge mask and the saturation stage. The saturated (or, at amount 1.0,
// the untouched smoothed) buffer is posterized and the edge mask blacks out its
// edge pixels.
//
// Arguments:
//   - src: The decoded source image. It is not modified.
//   - raw: Caller-supplied parameters; absent values take defaults.
//
// Returns:
//   - *Result: The final image with the applied parameters, plan and intermediates.
//   - error: A *StageError matching ErrInvalidParameter or ErrProcessing.
//
// @example
//
//	pipe := shading.New(native.New(native.Options{Seed: 1}))
//	res, err := pipe.Process(img, shading.RawParameters{ColorLevels: shading.Ptr(4)})
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Plan)
func (p *Pipeline) Process(src *images.BGR, raw RawParameters) (*Result, error) {
	started := time.Now()
	res := &Result{Timings: Timings{Timestamp: started}}

	params, err := Normalize(raw)
	if err != nil {
		return nil, stageError(StageNormalize, ErrInvalidParameter, err)
	}
	res.Params = params

	if !src.Valid() {
		return nil, stageError(StagePlan, ErrProcessing, errors.New("source image is empty or malformed"))
	}
	plan, err := PlanDimensions(src.Width, src.Height, params)
	if err != nil {
		return nil, stageError(StagePlan, ErrProcessing, err)
	}
	res.Plan = plan
	res.Timings.record(StageNormalize, time.Since(started))

	p.logger.Debug().
		Int("edge_thickness", params.EdgeThickness).
		Int("color_levels", params.ColorLevels).
		Int("smoothing_amount", params.SmoothingAmount).
		Float64("saturation_amount", params.SaturationAmount).
		Stringer("plan", plan).
		Msg("processing image")

	img := src
	if plan.NeedsResize() {
		interp := plan.Interpolation()
		img, err = p.run(res, StageResize, func() (*images.BGR, error) {
			return p.backend.Resize(src, plan.Width, plan.Height, interp)
		})
		if err != nil {
			return nil, err
		}
		if err := checkShape(StageResize, img, plan); err != nil {
			return nil, err
		}
	}

	res.Smoothed, err = p.run(res, StageSmooth, func() (*images.BGR, error) {
		return p.backend.Smooth(img, params.SmoothingAmount, SigmaColor, SigmaSpace)
	})
	if err != nil {
		return nil, err
	}
	if err := checkShape(StageSmooth, res.Smoothed, plan); err != nil {
		return nil, err
	}

	t := time.Now()
	res.Mask, err = p.backend.EdgeMask(res.Smoothed, MedianKernel, params.BlockSize(), params.ThresholdC())
	res.Timings.record(StageEdge, time.Since(t))
	if err != nil {
		return nil, stageError(StageEdge, ErrProcessing, err)
	}
	if res.Mask == nil || res.Mask.Width != plan.Width || res.Mask.Height != plan.Height {
		return nil, stageError(StageEdge, ErrProcessing, errors.New("edge mask does not match the image size"))
	}

	res.Saturated = res.Smoothed
	if params.SaturationChanged() {
		res.Saturated, err = p.run(res, StageSaturate, func() (*images.BGR, error) {
			return p.backend.Saturate(res.Smoothed, params.SaturationAmount)
		})
		if err != nil {
			return nil, err
		}
		if err := checkShape(StageSaturate, res.Saturated, plan); err != nil {
			return nil, err
		}
	}

	res.Posterized, err = p.run(res, StageQuantize, func() (*images.BGR, error) {
		return p.backend.Quantize(res.Saturated, params.ColorLevels, QuantizeAttempts, quantize.DefaultCriteria)
	})
	if err != nil {
		return nil, err
	}
	if err := checkShape(StageQuantize, res.Posterized, plan); err != nil {
		return nil, err
	}

	res.Image, err = p.run(res, StageComposite, func() (*images.BGR, error) {
		return p.backend.Composite(res.Posterized, res.Mask)
	})
	if err != nil {
		return nil, err
	}
	if err := checkShape(StageComposite, res.Image, plan); err != nil {
		return nil, err
	}

	res.Timings.Total = time.Since(started)
	res.Timings.Pixels = plan.Width * plan.Height
	p.logger.Debug().
		Object("timings", res.Timings).
		Int("edge_pixels", res.Mask.EdgeCount()).
		Msg("image processed")

	return res, nil
}

// run times a stage and tags its failure.
func (p *Pipeline) run(res *Result, stage Stage, fn func() (*images.BGR, error)) (*images.BGR, error) {
	t := time.Now()
	out, err := fn()
	res.Timings.record(stage, time.Since(t))
	if err != nil {
		return nil, stageError(stage, ErrProcessing, err)
	}
	return out, nil
}

func checkShape(stage Stage, img *images.BGR, plan DimensionPlan) error {
	if !img.Valid() || !img.SameSize(plan.Width, plan.Height) {
		return shapeError(stage, img, plan.Width, plan.Height)
	}
	return nil
}

func shapeError(stage Stage, img *images.BGR, width, height int) error {
	if img == nil {
		return stageError(stage, ErrProcessing, errors.New("stage produced no image"))
	}
	return stageError(stage, ErrProcessing,
		errors.Errorf("stage produced %dx%d, want %dx%d", img.Width, img.Height, width, height))
}
