package shading_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/shading"
)

func encoded(t *testing.T, img *images.BGR, f images.Format) []byte {
	t.Helper()
	data, err := images.Encode(img, f, images.EncodeOptions{})
	require.NoError(t, err)
	return data
}

func TestRenderKeepsSourceFormat(t *testing.T) {
	data := encoded(t, blocks(60, 40), images.FormatPNG)

	out, err := newPipeline().Render(data, shading.RawParameters{TargetWidth: shading.Ptr(30)}, shading.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, images.FormatPNG, out.SourceFormat)
	assert.Equal(t, images.FormatPNG, out.Output.Format)
	assert.Equal(t, 30, out.Output.Width)
	assert.Equal(t, 20, out.Output.Height)

	decoded, f, err := images.Decode(out.Output.Data)
	require.NoError(t, err)
	assert.Equal(t, images.FormatPNG, f)
	assert.True(t, decoded.Equal(out.Image))
}

func TestRenderConvertsFormat(t *testing.T) {
	data := encoded(t, blocks(32, 32), images.FormatBMP)
	out, err := newPipeline().Render(data, shading.RawParameters{}, shading.RenderOptions{Format: images.FormatJPEG})
	require.NoError(t, err)
	assert.Equal(t, images.FormatBMP, out.SourceFormat)

	_, f, err := images.Decode(out.Output.Data)
	require.NoError(t, err)
	assert.Equal(t, images.FormatJPEG, f)
}

func TestRenderDecodeError(t *testing.T) {
	_, err := newPipeline().Render([]byte("definitely not an image"), shading.RawParameters{}, shading.RenderOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shading.ErrDecode))
	stage, _ := shading.StageOf(err)
	assert.Equal(t, shading.StageDecode, stage)
}

func TestRenderInvalidParameterBeforeDecode(t *testing.T) {
	_, err := newPipeline().Render([]byte("garbage"), shading.RawParameters{TargetHeight: shading.Ptr(3000)}, shading.RenderOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shading.ErrInvalidParameter))
	assert.False(t, errors.Is(err, shading.ErrDecode))
}

func TestRenderEncodeError(t *testing.T) {
	data := encoded(t, blocks(16, 16), images.FormatPNG)
	_, err := newPipeline().Render(data, shading.RawParameters{}, shading.RenderOptions{Format: images.Format("heic")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shading.ErrEncode))
	stage, _ := shading.StageOf(err)
	assert.Equal(t, shading.StageEncode, stage)
}
