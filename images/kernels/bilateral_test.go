package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cellshade/images"
)

func TestBilateralRadius(t *testing.T) {
	assert.Equal(t, 1, BilateralRadius(1, 80))
	assert.Equal(t, 1, BilateralRadius(2, 80))
	assert.Equal(t, 3, BilateralRadius(7, 80))
	assert.Equal(t, 7, BilateralRadius(15, 80))
	assert.Equal(t, 3, BilateralRadius(0, 2))
}

func TestBilateralPreservesDimensions(t *testing.T) {
	src := genBGR(17, 11, 1)
	out, err := Bilateral(src, 7, 80, 80, nil)
	require.NoError(t, err)
	assert.Equal(t, 17, out.Width)
	assert.Equal(t, 11, out.Height)
	assert.Len(t, out.Pix, 3*17*11)
	assert.NotSame(t, src, out)
}

func TestBilateralUniformImageUnchanged(t *testing.T) {
	src := images.NewBGR(9, 9)
	src.Fill(12, 200, 99)
	out, err := Bilateral(src, 9, 80, 80, nil)
	require.NoError(t, err)
	assert.True(t, out.Equal(src))
}

func TestBilateralPreservesStrongEdge(t *testing.T) {
	// Left half black, right half white: the color term suppresses mixing.
	src := images.NewBGR(20, 4)
	for y := 0; y < 4; y++ {
		for x := 10; x < 20; x++ {
			src.Set(x, y, 255, 255, 255)
		}
	}
	out, err := Bilateral(src, 5, 20, 80, nil)
	require.NoError(t, err)

	b, _, _ := out.At(9, 2)
	assert.Less(t, b, uint8(5))
	b, _, _ = out.At(10, 2)
	assert.Greater(t, b, uint8(250))
}

func TestBilateralSmoothsNoise(t *testing.T) {
	src := images.NewBGR(15, 15)
	src.Fill(100, 100, 100)
	src.Set(7, 7, 130, 130, 130)

	out, err := Bilateral(src, 5, 80, 80, nil)
	require.NoError(t, err)
	b, _, _ := out.At(7, 7)
	assert.Less(t, b, uint8(130))
	assert.GreaterOrEqual(t, b, uint8(100))
}

func TestBilateralPoolDeterministic(t *testing.T) {
	src := genBGR(24, 16, 5)
	pool := &Pool{}
	a, err := Bilateral(src, 7, 80, 80, pool)
	require.NoError(t, err)
	b, err := Bilateral(src, 7, 80, 80, pool)
	require.NoError(t, err)
	c, err := Bilateral(src, 7, 80, 80, nil)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(c))
}

func TestBilateralIgnoresDirtyPooledWeights(t *testing.T) {
	src := genBGR(20, 12, 3)
	want, err := Bilateral(src, 5, 80, 80, nil)
	require.NoError(t, err)

	pool := &Pool{}
	dirty := pool.GetFloats(3 * 256)
	for i := range dirty {
		dirty[i] = 1e6
	}
	pool.PutFloats(dirty)

	got, err := Bilateral(src, 5, 80, 80, pool)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestBilateralSinglePixel(t *testing.T) {
	src := images.NewBGR(1, 1)
	src.Set(0, 0, 1, 2, 3)
	out, err := Bilateral(src, 15, 80, 80, nil)
	require.NoError(t, err)
	assert.True(t, out.Equal(src))
}

func TestBilateralInvalid(t *testing.T) {
	_, err := Bilateral(nil, 7, 80, 80, nil)
	assert.Error(t, err)
	_, err = Bilateral(&images.BGR{Width: 2, Height: 2, Pix: make([]uint8, 3)}, 7, 80, 80, nil)
	assert.Error(t, err)
}
