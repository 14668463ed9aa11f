package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/library"
	"github.com/nvr-ai/go-cellshade/shading"
	"github.com/nvr-ai/go-cellshade/util"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

// uploadForm holds the processing fields of an upload. Absent fields are nil.
type uploadForm struct {
	EdgeThickness    *int     `schema:"edge_thickness"`
	ColorLevels      *int     `schema:"color_levels"`
	SmoothingAmount  *int     `schema:"smoothing_amount"`
	SaturationAmount *float64 `schema:"saturation_amount"`
	TargetWidth      *int     `schema:"target_width"`
	TargetHeight     *int     `schema:"target_height"`
	// KeepRatio is "1" for true. Any other value is false.
	KeepRatio *string `schema:"keep_ratio"`
}

func (f uploadForm) raw() shading.RawParameters {
	raw := shading.RawParameters{
		EdgeThickness:    f.EdgeThickness,
		ColorLevels:      f.ColorLevels,
		SmoothingAmount:  f.SmoothingAmount,
		SaturationAmount: f.SaturationAmount,
		TargetWidth:      f.TargetWidth,
		TargetHeight:     f.TargetHeight,
	}
	if f.KeepRatio != nil {
		raw.KeepRatio = shading.Ptr(*f.KeepRatio == "1")
	}
	return raw
}

// Dims is a width and height pair.
type Dims struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AppliedParameters echoes the parameters a render used. Targets are null when
// none was given.
type AppliedParameters struct {
	EdgeThickness    int     `json:"edge_thickness"`
	ColorLevels      int     `json:"color_levels"`
	SmoothingAmount  int     `json:"smoothing_amount"`
	SaturationAmount float64 `json:"saturation_amount"`
	TargetWidth      *int    `json:"target_width"`
	TargetHeight     *int    `json:"target_height"`
	KeepRatio        bool    `json:"keep_ratio"`
}

func appliedParameters(p shading.Parameters) AppliedParameters {
	a := AppliedParameters{
		EdgeThickness:    p.EdgeThickness,
		ColorLevels:      p.ColorLevels,
		SmoothingAmount:  p.SmoothingAmount,
		SaturationAmount: p.SaturationAmount,
		KeepRatio:        p.KeepRatio,
	}
	if p.TargetWidth > 0 {
		a.TargetWidth = shading.Ptr(p.TargetWidth)
	}
	if p.TargetHeight > 0 {
		a.TargetHeight = shading.Ptr(p.TargetHeight)
	}
	return a
}

// UploadResponse is the reply of a successful upload.
type UploadResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	ImageID       int               `json:"image_id,omitempty"`
	OriginalPath  string            `json:"original_path"`
	ProcessedPath string            `json:"processed_path"`
	OriginalDims  Dims              `json:"original_dims"`
	FinalDims     Dims              `json:"final_dims"`
	Parameters    AppliedParameters `json:"parameters"`
}

// ImagesResponse lists the image library.
type ImagesResponse struct {
	Success bool            `json:"success"`
	Images  []library.Entry `json:"images"`
}

// HealthResponse is the reply of the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "CellShader application is running",
		Version: s.version,
	})
}

// upload stores an uploaded image, registers it in the library and renders it.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	tooLarge := func() {
		s.fail(w, r, http.StatusRequestEntityTooLarge,
			"File too large. Maximum size is "+humanSize(s.cfg.MaxUploadBytes)+".")
	}

	if r.ContentLength > s.cfg.MaxUploadBytes {
		tooLarge()
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			tooLarge()
			return
		}
		s.fail(w, r, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		s.fail(w, r, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()

	if !util.AllowedFile(header.Filename) || !util.AllowedFile(util.SecureFilename(header.Filename)) {
		s.fail(w, r, http.StatusBadRequest, "Invalid file type. Please upload PNG, JPG, JPEG, GIF, BMP, or TIFF files.")
		return
	}

	var form uploadForm
	if err := bindForm(r.MultipartForm.Value, &form); err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	raw := form.raw()
	params, err := shading.Normalize(raw)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "Could not read uploaded file.")
		return
	}

	now := s.now()
	name := util.UploadName(header.Filename, now)
	if err := os.MkdirAll(s.renderDir(), 0o755); err != nil {
		s.serverError(w, r, errors.Wrap(err, "failed to create upload directories"))
		return
	}
	originalPath := filepath.Join(s.cfg.UploadDir, name)
	if err := os.WriteFile(originalPath, data, 0o644); err != nil {
		s.serverError(w, r, errors.Wrap(err, "failed to store upload"))
		return
	}
	s.logger.Info().Str("path", originalPath).Int("bytes", len(data)).Msg("file uploaded")

	dims, _, err := images.DecodeConfig(data)
	if err != nil {
		_ = os.Remove(originalPath)
		s.fail(w, r, http.StatusBadRequest, "Could not read uploaded image.")
		return
	}

	entry, err := s.store.Add(library.NewEntry{
		Filename:       name,
		OriginalName:   header.Filename,
		FileSize:       int64(len(data)),
		OriginalWidth:  dims.Width,
		OriginalHeight: dims.Height,
		TargetWidth:    params.TargetWidth,
		TargetHeight:   params.TargetHeight,
		KeepRatio:      params.KeepRatio,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("filename", name).Msg("could not save image metadata")
	}

	rendered, err := s.renderBounded(r.Context(), data, raw)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	outName := util.RenderedName(name, now, "")
	processedPath := filepath.Join(s.renderDir(), outName)
	if err := os.WriteFile(processedPath, rendered.Output.Data, 0o644); err != nil {
		s.serverError(w, r, errors.Wrap(err, "failed to store render"))
		return
	}

	s.logger.Info().
		Str("processed_path", processedPath).
		Str("plan", rendered.Plan.String()).
		Object("timings", rendered.Timings).
		Msg("image processed")

	s.render(w, r, http.StatusOK, UploadResponse{
		Success:       true,
		Message:       "Image processed successfully",
		ImageID:       entry.ID,
		OriginalPath:  filepath.ToSlash(originalPath),
		ProcessedPath: filepath.ToSlash(processedPath),
		OriginalDims:  Dims{Width: dims.Width, Height: dims.Height},
		FinalDims:     Dims{Width: rendered.Plan.Width, Height: rendered.Plan.Height},
		Parameters:    appliedParameters(rendered.Params),
	})
}

// errRenderTimeout reports a render that did not finish in time.
var errRenderTimeout = errors.New("render timed out")

// renderBounded runs a render once a slot is free, waiting at most the render
// timeout overall. A render that outlives the wait keeps its slot until it ends
// and its result is dropped.
func (s *Server) renderBounded(ctx context.Context, data []byte, raw shading.RawParameters) (*shading.Rendered, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()

	if err := s.renders.Acquire(ctx, 1); err != nil {
		return nil, errRenderTimeout
	}

	type outcome struct {
		rendered *shading.Rendered
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		defer s.renders.Release(1)
		res, err := s.pipeline.Render(data, raw, shading.RenderOptions{
			Encode: images.EncodeOptions{JPEGQuality: s.cfg.JPEGQuality},
		})
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.rendered, o.err
	case <-ctx.Done():
		return nil, errRenderTimeout
	}
}

// renderError maps a render failure to a status: caller errors are 400, a
// timeout is 503 and everything else is 500.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errRenderTimeout):
		s.logger.Warn().Dur("timeout", s.cfg.RenderTimeout).Msg("render timed out")
		s.fail(w, r, http.StatusServiceUnavailable, "Image processing timed out. Please try again.")
	case errors.Is(err, shading.ErrInvalidParameter), errors.Is(err, shading.ErrDecode):
		s.fail(w, r, http.StatusBadRequest, err.Error())
	default:
		stage, _ := shading.StageOf(err)
		s.logger.Error().Err(err).Str("stage", string(stage)).Msg("render failed")
		s.fail(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	s.fail(w, r, http.StatusInternalServerError, err.Error())
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, ImagesResponse{Success: true, Images: s.store.List()})
}

func (s *Server) updateImage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.imageID(w, r)
	if !ok {
		return
	}

	var u library.Update
	if msg := loadJSON(r, &u); msg != nil {
		s.render(w, r, http.StatusBadRequest, msg)
		return
	}
	if u.Empty() {
		s.fail(w, r, http.StatusBadRequest, msgNoData)
		return
	}

	if _, err := s.store.Update(id, u); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			s.fail(w, r, http.StatusNotFound, "Image not found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.ok(w, r, "Image updated successfully")
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.imageID(w, r)
	if !ok {
		return
	}

	entry, err := s.store.Get(id)
	if err != nil {
		s.fail(w, r, http.StatusNotFound, "Image not found")
		return
	}

	if entry.Filename != "" && entry.Filename == filepath.Base(entry.Filename) {
		path := filepath.Join(s.cfg.UploadDir, entry.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.serverError(w, r, errors.Wrapf(err, "failed to delete %s", path))
			return
		}
	}

	if _, err := s.store.Remove(id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			s.fail(w, r, http.StatusNotFound, "Image not found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.ok(w, r, "Image deleted successfully")
}

func (s *Server) imageID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		s.fail(w, r, http.StatusNotFound, "Image not found")
		return 0, false
	}
	return id, true
}

// serveFile serves an upload, falling back to the render directory.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	format, isImage := images.FormatFromExtension(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !isImage {
		s.fail(w, r, http.StatusNotFound, "File not found")
		return
	}

	for _, dir := range []string{s.cfg.UploadDir, s.renderDir()} {
		path := filepath.Join(dir, name)
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("error serving file")
			s.fail(w, r, http.StatusInternalServerError, "Error serving file")
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", format.ContentType())
		// The request logger's writer asserts io.ReaderFrom on whatever it wraps,
		// so only the plain ResponseWriter methods are exposed to ServeContent.
		http.ServeContent(struct{ http.ResponseWriter }{w}, r, name, fi.ModTime(), f)
		return
	}
	s.fail(w, r, http.StatusNotFound, "File not found")
}

// humanSize formats a byte count in whole MiB when it is one, as "16MB".
func humanSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
