package shading

import (
	"github.com/nvr-ai/go-cellshade/images"
)

// RenderOptions controls Render.
type RenderOptions struct {
	// Format of the output. Empty keeps the source format.
	Format images.Format
	// Encode tunes the encoder.
	Encode images.EncodeOptions
}

// Rendered is the outcome of Render.
type Rendered struct {
	*Result
	// SourceFormat is the detected input format.
	SourceFormat images.Format
	// Output is the encoded final image.
	Output images.Image
}

// Render decodes an encoded image, processes it and encodes the result.
//
// Arguments:
//   - data: The encoded source image.
//   - raw: Caller-supplied parameters.
//   - opts: Output format and encoder tuning.
//
// Returns:
//   - *Rendered: The encoded output plus the processing result.
//   - error: A *StageError matching ErrDecode, ErrInvalidParameter, ErrProcessing or ErrEncode.
func (p *Pipeline) Render(data []byte, raw RawParameters, opts RenderOptions) (*Rendered, error) {
	// Reject bad parameters before spending time on decoding.
	if _, err := Normalize(raw); err != nil {
		return nil, stageError(StageNormalize, ErrInvalidParameter, err)
	}

	src, format, err := images.Decode(data)
	if err != nil {
		return nil, stageError(StageDecode, ErrDecode, err)
	}

	res, err := p.Process(src, raw)
	if err != nil {
		return nil, err
	}

	out := opts.Format
	if out == "" {
		out = format
	}
	encoded, err := images.Encode(res.Image, out, opts.Encode)
	if err != nil {
		return nil, stageError(StageEncode, ErrEncode, err)
	}

	return &Rendered{
		Result:       res,
		SourceFormat: format,
		Output: images.Image{
			Format: out,
			Data:   encoded,
			Width:  res.Image.Width,
			Height: res.Image.Height,
		},
	}, nil
}
