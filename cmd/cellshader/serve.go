package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-cellshade/library"
	"github.com/nvr-ai/go-cellshade/server"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload and rendering web API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.cfg.Host, "host", a.cfg.Host, "listen host")
	f.IntVar(&a.cfg.Port, "port", a.cfg.Port, "listen port")
	f.StringVar(&a.cfg.UploadDir, "upload-dir", a.cfg.UploadDir, "directory receiving uploads and renders")
	f.StringVar(&a.cfg.MetadataFile, "metadata-file", a.cfg.MetadataFile, "JSON file of the image library (default <upload-dir>/images_metadata.json)")
	f.Int64Var(&a.cfg.MaxUploadBytes, "max-upload-bytes", a.cfg.MaxUploadBytes, "largest accepted upload")
	f.IntVar(&a.cfg.MaxConcurrentRenders, "max-renders", a.cfg.MaxConcurrentRenders, "renders allowed to run at once")
	f.DurationVar(&a.cfg.RenderTimeout, "render-timeout", a.cfg.RenderTimeout, "longest a request waits for its render")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.UploadDir, 0o755); err != nil {
		return err
	}
	srv := server.New(a.cfg, a.pipeline(), a.openLibrary(), server.WithVersion(a.version))
	return srv.ListenAndServe(ctx)
}

// openLibrary opens the metadata store so entry paths name the configured upload directory.
func (a *app) openLibrary() *library.Store {
	return library.Open(a.cfg.MetadataPath(), library.WithUploadDirName(filepath.ToSlash(a.cfg.UploadDir)))
}
