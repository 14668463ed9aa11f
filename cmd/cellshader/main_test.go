package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cellshade/config"
	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/library"
	"github.com/nvr-ai/go-cellshade/shading"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cellshader test\n", out)
}

func TestPlan(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"plan", "4000", "3000", "--width", "1920"}, "4000x3000 -> 1920x1440"},
		{[]string{"plan", "800", "600"}, "800x600 -> 800x600"},
		{[]string{"plan", "800", "600", "--height", "300"}, "800x600 -> 400x300"},
		{[]string{"plan", "800", "600", "--width", "100", "--keep-ratio=false"}, "800x600 -> 100x600"},
		{[]string{"plan", "1000", "1000", "--resolution", "720p", "--keep-ratio=false"}, "1000x1000 -> 1280x720"},
		{[]string{"plan", "1000", "1000", "--resolution", "720P", "--width", "500", "--keep-ratio=false"}, "1000x1000 -> 500x720"},
	}
	for _, tt := range tests {
		out, err := run(t, tt.args...)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, strings.TrimSpace(out), tt.args)
	}
}

func TestPlanErrors(t *testing.T) {
	_, err := run(t, "plan", "800", "600", "--width", "5000")
	assert.True(t, errors.Is(err, shading.ErrInvalidParameter))

	_, err = run(t, "plan", "wide", "600")
	assert.Error(t, err)

	_, err = run(t, "plan", "0", "600")
	assert.Error(t, err)

	_, err = run(t, "plan", "800", "600", "--resolution", "8k")
	assert.ErrorContains(t, err, "unknown resolution")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("CELLSHADER_BACKEND", "cuda")

	_, err := run(t, "plan", "10", "10")
	assert.Error(t, err, "invalid backend from the environment fails validation")

	_, err = run(t, "plan", "10", "10", "--backend", "native")
	assert.NoError(t, err)
}

func TestLibraryFollowsUploadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	a := &app{cfg: config.Default()}
	a.cfg.UploadDir = dir

	store := a.openLibrary()
	assert.Equal(t, filepath.Join(dir, "images_metadata.json"), store.Path())

	e, err := store.Add(library.NewEntry{
		Filename:       "a.png",
		OriginalName:   "a.png",
		FileSize:       10,
		OriginalWidth:  4,
		OriginalHeight: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(dir)+"/a.png", e.FilePath)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellshader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jpeg_quality: 500\n"), 0o644))

	_, err := run(t, "version", "--config", path)
	assert.Error(t, err)

	_, err = run(t, "version", "--config", path, "--jpeg-quality", "80")
	assert.NoError(t, err)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	img := images.NewBGR(40, 30)
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, uint8(x*6), uint8(y*8), 128)
		}
	}
	data, err := images.Encode(img, images.FormatPNG, images.EncodeOptions{})
	require.NoError(t, err)
	in := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(in, data, 0o644))

	out := filepath.Join(dir, "out", "result.jpg")
	stdout, err := run(t, "render", in, "-o", out, "--format", "jpg", "--color-levels", "4", "--width", "20", "--seed", "7")
	require.NoError(t, err)
	assert.Equal(t, out, strings.TrimSpace(stdout))

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	cfg, format, err := images.DecodeConfig(written)
	require.NoError(t, err)
	assert.Equal(t, images.FormatJPEG, format)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 15, cfg.Height)
}

func TestRenderDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	data, err := images.Encode(images.NewBGR(8, 8), images.FormatPNG, images.EncodeOptions{})
	require.NoError(t, err)
	in := filepath.Join(dir, "flat.png")
	require.NoError(t, os.WriteFile(in, data, 0o644))

	stdout, err := run(t, "render", in, "--seed", "3")
	require.NoError(t, err)

	out := strings.TrimSpace(stdout)
	assert.Equal(t, filepath.Join(dir, "cell-shaded"), filepath.Dir(out))
	assert.True(t, strings.HasPrefix(filepath.Base(out), "flat_cellshaded_"))
	assert.Equal(t, ".png", filepath.Ext(out))
	assert.FileExists(t, out)
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "render", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	_, err = run(t, "render", bad)
	assert.True(t, errors.Is(err, shading.ErrDecode))

	_, err = run(t, "render", bad, "--format", "psd")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestBench(t *testing.T) {
	dir := t.TempDir()
	set := filepath.Join(dir, "set.json")
	require.NoError(t, os.WriteFile(set, []byte(`{
  "name": "tiny",
  "scenarios": [{"name": "t", "resolution": {"width": 24, "height": 16, "name": "24x16"}, "iterations": 1}]
}`), 0o644))

	out, err := run(t, "bench", "--scenarios", set, "-o", filepath.Join(dir, "results"), "--seed", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.FileExists(t, lines[0])
	assert.FileExists(t, lines[1])

	_, err = run(t, "bench", "--set", "everything")
	assert.Error(t, err)
}
