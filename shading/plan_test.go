package shading

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cellshade/images"
)

func mustNormalize(t *testing.T, raw RawParameters) Parameters {
	t.Helper()
	p, err := Normalize(raw)
	require.NoError(t, err)
	return p
}

func TestPlanDimensions(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		raw          RawParameters
		wantW, wantH int
		wantResize   bool
	}{
		{"no targets", 640, 480, RawParameters{}, 640, 480, false},
		{"width only", 1000, 500, RawParameters{TargetWidth: Ptr(500)}, 500, 250, true},
		{"height only", 1000, 500, RawParameters{TargetHeight: Ptr(100)}, 200, 100, true},
		{"both targets width wins", 1000, 500, RawParameters{TargetWidth: Ptr(400), TargetHeight: Ptr(1000)}, 400, 200, true},
		{"rounding", 1000, 300, RawParameters{TargetWidth: Ptr(101)}, 101, 30, true},
		{"rounding up", 3, 2, RawParameters{TargetWidth: Ptr(5)}, 5, 3, true},
		{"cap 4:3", 4000, 3000, RawParameters{TargetWidth: Ptr(3840), TargetHeight: Ptr(2160)}, 2880, 2160, true},
		{"cap portrait height only", 1000, 2000, RawParameters{TargetHeight: Ptr(2160)}, 1080, 2160, true},
		{"cap very wide", 1000, 100, RawParameters{TargetHeight: Ptr(768)}, 3840, 384, true},
		{"tiny side stays positive", 10000, 1, RawParameters{TargetWidth: Ptr(10)}, 10, 1, true},
		{"same as source", 800, 600, RawParameters{TargetWidth: Ptr(800)}, 800, 600, false},
		{"free both", 1000, 500, RawParameters{TargetWidth: Ptr(300), TargetHeight: Ptr(300), KeepRatio: Ptr(false)}, 300, 300, true},
		{"free width only", 1000, 500, RawParameters{TargetWidth: Ptr(300), KeepRatio: Ptr(false)}, 300, 500, true},
		{"free height only", 1000, 500, RawParameters{TargetHeight: Ptr(20), KeepRatio: Ptr(false)}, 1000, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanDimensions(tt.srcW, tt.srcH, mustNormalize(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, plan.Width)
			assert.Equal(t, tt.wantH, plan.Height)
			assert.Equal(t, tt.srcW, plan.SourceWidth)
			assert.Equal(t, tt.srcH, plan.SourceHeight)
			assert.Equal(t, tt.wantResize, plan.NeedsResize())
		})
	}
}

func TestPlanDimensionsOversizedTargetsAreCapped(t *testing.T) {
	// The normalizer never lets a 4000 wide target through, but the planner on
	// its own still caps oversized requests.
	p := Parameters{TargetWidth: 4000, TargetHeight: 3000, KeepRatio: true}
	plan, err := PlanDimensions(4000, 3000, p)
	require.NoError(t, err)
	assert.Equal(t, 2880, plan.Width)
	assert.Equal(t, 2160, plan.Height)
	assert.True(t, plan.NeedsResize())
}

func TestPlanDimensionsInvalidSource(t *testing.T) {
	_, err := PlanDimensions(0, 10, DefaultParameters())
	assert.Error(t, err)
	_, err = PlanDimensions(10, -1, DefaultParameters())
	assert.Error(t, err)
}

func TestPlanDimensionsDeterministicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		srcW, srcH := 1+rng.Intn(8000), 1+rng.Intn(8000)
		raw := RawParameters{KeepRatio: Ptr(true)}
		switch rng.Intn(3) {
		case 0:
			raw.TargetWidth = Ptr(1 + rng.Intn(3840))
		case 1:
			raw.TargetHeight = Ptr(1 + rng.Intn(2160))
		default:
			raw.TargetWidth = Ptr(1 + rng.Intn(3840))
			raw.TargetHeight = Ptr(1 + rng.Intn(2160))
		}
		p := mustNormalize(t, raw)

		a, err := PlanDimensions(srcW, srcH, p)
		require.NoError(t, err)
		b, err := PlanDimensions(srcW, srcH, p)
		require.NoError(t, err)
		require.Equal(t, a, b)

		require.GreaterOrEqual(t, a.Width, 1)
		require.GreaterOrEqual(t, a.Height, 1)
		require.LessOrEqual(t, a.Width, images.MaxOutput.Width, "%dx%d %+v", srcW, srcH, p)
		require.LessOrEqual(t, a.Height, images.MaxOutput.Height, "%dx%d %+v", srcW, srcH, p)
	}
}

func TestDimensionPlanInterpolation(t *testing.T) {
	down := DimensionPlan{SourceWidth: 100, SourceHeight: 100, Width: 50, Height: 50}
	up := DimensionPlan{SourceWidth: 100, SourceHeight: 100, Width: 150, Height: 150}
	assert.Equal(t, images.InterpolationArea, down.Interpolation())
	assert.Equal(t, images.InterpolationLanczos, up.Interpolation())
	assert.Equal(t, "100x100 -> 50x50", down.String())
}
