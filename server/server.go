// Package server - HTTP surface of the cellshader application: image upload and
// rendering, the image library API, file serving and health checks.
package server

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/nvr-ai/go-cellshade/config"
	"github.com/nvr-ai/go-cellshade/library"
	"github.com/nvr-ai/go-cellshade/shading"
)

// RenderDirName is the subdirectory of the upload directory receiving renders.
const RenderDirName = "cell-shaded"

// Server wires the pipeline and the image library to a chi router.
type Server struct {
	Router *chi.Mux

	cfg      config.Config
	pipeline *shading.Pipeline
	store    *library.Store
	renders  *semaphore.Weighted
	logger   zerolog.Logger
	now      func() time.Time
	version  string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithClock overrides the clock used to name uploads and renders.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithVersion sets the version reported by the health check.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server with every route registered.
//
// Arguments:
//   - cfg: Application configuration. Upload limits, render bounds and directories are read from it.
//   - pipeline: The cell-shading pipeline used for renders.
//   - store: The image library.
//
// Returns:
//   - *Server: A server ready for ListenAndServe or for use as an http.Handler.
func New(cfg config.Config, pipeline *shading.Pipeline, store *library.Store, opts ...Option) *Server {
	renders := int64(cfg.MaxConcurrentRenders)
	if renders < 1 {
		renders = 1
	}

	s := &Server{
		Router:   chi.NewRouter(),
		cfg:      cfg,
		pipeline: pipeline,
		store:    store,
		renders:  semaphore.NewWeighted(renders),
		logger:   log.With().Str("component", "server").Logger(),
		now:      time.Now,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Router.Use(
		middleware.Recoverer,
		RequestID,
		RequestLogger(s.logger),
	)

	s.Router.Get("/health", s.health)
	s.Router.Post("/upload", s.upload)
	s.Router.Get("/uploads/{filename}", s.serveFile)
	s.Router.Route("/api/images", func(r chi.Router) {
		r.Use(compress)
		r.Get("/", s.listImages)
		r.Put("/{id}", s.updateImage)
		r.Delete("/{id}", s.deleteImage)
	})
	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, http.StatusNotFound, "Not found")
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Str("backend", s.pipeline.Backend().Name()).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// renderDir returns the directory receiving rendered images.
func (s *Server) renderDir() string {
	return filepath.Join(s.cfg.UploadDir, RenderDirName)
}

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
