package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-cellshade/backends/native"
	"github.com/nvr-ai/go-cellshade/config"
	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/library"
	"github.com/nvr-ai/go-cellshade/shading"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv   *Server
	cfg   config.Config
	store *library.Store
}

func newFixture(t *testing.T, backend shading.Backend, mod func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.MetadataFile = filepath.Join(dir, "image_metadata.json")
	if mod != nil {
		mod(&cfg)
	}
	if backend == nil {
		backend = native.New(native.Options{Seed: 42})
	}

	store := library.Open(cfg.MetadataFile,
		library.WithLogger(zerolog.Nop()),
		library.WithClock(func() time.Time { return fixedNow }))
	pipe := shading.New(backend, shading.WithLogger(zerolog.Nop()))
	srv := New(cfg, pipe, store,
		WithLogger(zerolog.Nop()),
		WithClock(func() time.Time { return fixedNow }),
		WithVersion("1.2.3"))
	return &fixture{srv: srv, cfg: cfg, store: store}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

// testPNG encodes a w x h gradient with a dark square in the middle.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := images.NewBGR(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, uint8(x*255/w), uint8(y*255/h), 180)
		}
	}
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.Set(x, y, 20, 30, 40)
		}
	}
	data, err := images.Encode(img, images.FormatPNG, images.EncodeOptions{})
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	res := decode[HealthResponse](t, rec)
	assert.Equal(t, HealthResponse{Status: "healthy", Message: "CellShader application is running", Version: "1.2.3"}, res)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = f.do(req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestUnknownRouteIsJSON(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode[Message](t, rec).Success)
}

func TestUploadRendersAndRecords(t *testing.T) {
	f := newFixture(t, nil, nil)
	req := uploadRequest(t, "my photo.png", testPNG(t, 64, 48), map[string]string{
		"color_levels":  "4",
		"target_width":  "32",
		"target_height": "",
	})
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[UploadResponse](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ImageID)
	assert.Equal(t, Dims{64, 48}, res.OriginalDims)
	assert.Equal(t, Dims{32, 24}, res.FinalDims)
	assert.Equal(t, 4, res.Parameters.ColorLevels)
	assert.Equal(t, shading.DefaultEdgeThickness, res.Parameters.EdgeThickness)
	require.NotNil(t, res.Parameters.TargetWidth)
	assert.Equal(t, 32, *res.Parameters.TargetWidth)
	assert.Nil(t, res.Parameters.TargetHeight)
	assert.True(t, res.Parameters.KeepRatio)

	assert.True(t, strings.HasSuffix(res.OriginalPath, "/20240501_120000_my_photo.png"), res.OriginalPath)
	assert.True(t, strings.HasSuffix(res.ProcessedPath,
		"/cell-shaded/20240501_120000_my_photo_cellshaded_20240501_120000.png"), res.ProcessedPath)

	out, err := os.ReadFile(filepath.FromSlash(res.ProcessedPath))
	require.NoError(t, err)
	cfg, format, err := images.DecodeConfig(out)
	require.NoError(t, err)
	assert.Equal(t, images.FormatPNG, format)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 24, cfg.Height)

	entries := f.store.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "my photo.png", entries[0].OriginalName)
	assert.Equal(t, "20240501_120000_my_photo.png", entries[0].Filename)
	assert.Equal(t, 32, entries[0].TargetWidth)
	assert.Equal(t, 48, entries[0].TargetHeight)
	assert.InDelta(t, 64.0/48.0, entries[0].AspectRatio, 1e-9)

	// Both the upload and the render are served.
	for _, name := range []string{"20240501_120000_my_photo.png", "20240501_120000_my_photo_cellshaded_20240501_120000.png"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
		assert.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	}
}

func TestUploadKeepRatioOff(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(uploadRequest(t, "a.png", testPNG(t, 64, 48), map[string]string{
		"target_width": "32",
		"keep_ratio":   "0",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[UploadResponse](t, rec)
	assert.Equal(t, Dims{32, 48}, res.FinalDims)
	assert.False(t, res.Parameters.KeepRatio)
}

func TestUploadRejections(t *testing.T) {
	png := testPNG(t, 16, 16)
	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
		contains string
	}{
		{"no file", "", nil, nil, "No file selected"},
		{"bad extension", "notes.txt", []byte("hello"), nil, "Invalid file type"},
		{"width too large", "a.png", png, map[string]string{"target_width": "5000"}, "target_width must be between 1 and 3840, got 5000"},
		{"height zero", "a.png", png, map[string]string{"target_height": "0"}, "target_height"},
		{"not a number", "a.png", png, map[string]string{"color_levels": "many"}, "color_levels"},
		{"not an image", "a.png", []byte("definitely not a png"), nil, "Could not read uploaded image."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			rec := f.do(uploadRequest(t, tt.filename, tt.data, tt.fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			msg := decode[Message](t, rec)
			assert.False(t, msg.Success)
			assert.Contains(t, msg.Error, tt.contains)
			assert.Empty(t, f.store.List())

			files, _ := os.ReadDir(f.cfg.UploadDir)
			for _, fi := range files {
				assert.True(t, fi.IsDir(), "unexpected upload %s", fi.Name())
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, nil, func(c *config.Config) { c.MaxUploadBytes = 1024 })
	rec := f.do(uploadRequest(t, "big.png", bytes.Repeat([]byte{1}, 4096), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	msg := decode[Message](t, rec)
	assert.Equal(t, "File too large. Maximum size is 1024 bytes.", msg.Error)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "16MB", humanSize(16<<20))
	assert.Equal(t, "1500 bytes", humanSize(1500))
}

type slowBackend struct {
	*native.Backend
	delay time.Duration
}

func (b slowBackend) Smooth(src *images.BGR, diameter int, sigmaColor, sigmaSpace float64) (*images.BGR, error) {
	time.Sleep(b.delay)
	return b.Backend.Smooth(src, diameter, sigmaColor, sigmaSpace)
}

func TestUploadRenderTimeout(t *testing.T) {
	backend := slowBackend{Backend: native.New(native.Options{Seed: 1}), delay: 300 * time.Millisecond}
	f := newFixture(t, backend, func(c *config.Config) { c.RenderTimeout = 20 * time.Millisecond })

	rec := f.do(uploadRequest(t, "a.png", testPNG(t, 16, 16), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[Message](t, rec).Success)

	// The upload itself was kept and recorded.
	assert.Len(t, f.store.List(), 1)

	// Let the abandoned render finish before the temp dir is removed.
	time.Sleep(400 * time.Millisecond)
}

func addEntry(t *testing.T, f *fixture, name string) library.Entry {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.cfg.UploadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.UploadDir, name), []byte("x"), 0o644))
	e, err := f.store.Add(library.NewEntry{
		Filename:       name,
		OriginalName:   name,
		FileSize:       1,
		OriginalWidth:  100,
		OriginalHeight: 50,
		KeepRatio:      true,
	})
	require.NoError(t, err)
	return e
}

func TestListImages(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true, "images": []}`, rec.Body.String())

	addEntry(t, f, "a.png")
	addEntry(t, f, "b.png")
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	res := decode[ImagesResponse](t, rec)
	require.Len(t, res.Images, 2)
	assert.Equal(t, "a.png", res.Images[0].Filename)
	assert.Equal(t, 2, res.Images[1].ID)
}

func TestListImagesCompressed(t *testing.T) {
	f := newFixture(t, nil, nil)
	for i := 0; i < 20; i++ {
		addEntry(t, f, "image_"+strings.Repeat("x", i)+".png")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func putJSON(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/api/images/"+id, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUpdateImage(t *testing.T) {
	f := newFixture(t, nil, nil)
	addEntry(t, f, "a.png")

	rec := f.do(putJSON("1", `{"target_width": 640, "keep_ratio": false}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Image updated successfully", decode[Message](t, rec).Message)

	e, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 640, e.TargetWidth)
	assert.Equal(t, 50, e.TargetHeight)
	assert.False(t, e.KeepRatio)
}

func TestUpdateImageErrors(t *testing.T) {
	f := newFixture(t, nil, nil)
	addEntry(t, f, "a.png")

	rec := f.do(putJSON("1", `{"target_width": 0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decode[Message](t, rec)
	require.Len(t, msg.Errors, 1)
	assert.Equal(t, "target_width", msg.Errors[0].Location)

	rec = f.do(putJSON("1", `{"target_height": 2161}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(putJSON("1", ``))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNoData, decode[Message](t, rec).Error)

	rec = f.do(putJSON("1", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(putJSON("1", `{"target_width": "wide"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(putJSON("7", `{"keep_ratio": true}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Image not found", decode[Message](t, rec).Error)

	e, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 100, e.TargetWidth, "failed updates change nothing")
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t, nil, nil)
	e := addEntry(t, f, "a.png")
	path := filepath.Join(f.cfg.UploadDir, e.Filename)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/images/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Image deleted successfully", decode[Message](t, rec).Message)
	assert.NoFileExists(t, path)
	assert.Empty(t, f.store.List())

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/images/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/images/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteImageWithMissingFile(t *testing.T) {
	f := newFixture(t, nil, nil)
	e := addEntry(t, f, "a.png")
	require.NoError(t, os.Remove(filepath.Join(f.cfg.UploadDir, e.Filename)))

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/images/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.store.List())
}

func TestServeFileNotFound(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.cfg.UploadDir, RenderDirName), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.UploadDir, "images_metadata.json"), []byte("[]"), 0o644))

	for _, name := range []string{"missing.png", ".hidden", RenderDirName, "images_metadata.json"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
		assert.Equal(t, "File not found", decode[Message](t, rec).Error)
	}
}

func TestServeFileThroughRecorder(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.cfg.UploadDir, RenderDirName), 0o755))
	data := testPNG(t, 16, 12)
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.UploadDir, RenderDirName, "shaded.png"), data, 0o644))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/uploads/shaded.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())

	req := httptest.NewRequest(http.MethodGet, "/uploads/shaded.png", nil)
	req.Header.Set("Range", "bytes=0-7")
	rec = f.do(req)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, data[:8], rec.Body.Bytes())
}

func TestServeFileOverRealConnection(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, os.MkdirAll(f.cfg.UploadDir, 0o755))
	data := testPNG(t, 8, 8)
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.UploadDir, "a.png"), data, 0o644))

	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/uploads/a.png")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, data, body)
}
