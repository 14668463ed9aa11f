// Command cellshader turns photos into flat-colored, outlined cartoons. It serves
// the upload web API and renders or plans single images from the command line.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nvr-ai/go-cellshade/backends/native"
	"github.com/nvr-ai/go-cellshade/backends/opencv"
	"github.com/nvr-ai/go-cellshade/config"
	"github.com/nvr-ai/go-cellshade/images/kernels"
	"github.com/nvr-ai/go-cellshade/logging"
	"github.com/nvr-ai/go-cellshade/shading"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "2.0.0"

// app holds the state shared by the subcommands.
type app struct {
	cfg        config.Config
	configPath string
	version    string
}

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(version string) *cobra.Command {
	a := &app{cfg: config.Default(), version: version}

	root := &cobra.Command{
		Use:   "cellshader",
		Short: "Cartoon-style cell shading for photos",
		Long: `cellshader smooths a photo while keeping its edges, reduces it to a few flat
colors and draws dark outlines along its edges.

Examples:
  cellshader serve --port 8080
  cellshader render photo.jpg --color-levels 6 --width 1280
  cellshader plan 4000 3000 --width 1920`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML configuration file")
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format: console or json")
	f.StringVar(&a.cfg.Backend, "backend", a.cfg.Backend, "pipeline backend: native or opencv")
	f.Int64Var(&a.cfg.Seed, "seed", a.cfg.Seed, "clustering seed (0 seeds from the clock)")
	f.IntVar(&a.cfg.JPEGQuality, "jpeg-quality", a.cfg.JPEGQuality, "JPEG output quality")

	root.AddCommand(a.serveCmd(), a.renderCmd(), a.planCmd(), a.benchCmd(), a.versionCmd())
	return root
}

// setup resolves the configuration: defaults, then the config file and the
// environment, then any flag given on the command line.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	changed := map[*pflag.Flag]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f] = f.Value.String()
	})

	loaded, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = loaded
	for f, v := range changed {
		if err := f.Value.Set(v); err != nil {
			return err
		}
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}
	logging.Init(a.cfg.LogLevel, a.cfg.LogFormat)
	return nil
}

// pipeline builds the configured backend and a pipeline on top of it.
func (a *app) pipeline() *shading.Pipeline {
	var backend shading.Backend
	switch a.cfg.Backend {
	case config.BackendOpenCV:
		backend = opencv.New(opencv.Options{Seed: a.cfg.Seed})
	default:
		backend = native.New(native.Options{Seed: a.cfg.Seed, Pool: &kernels.Pool{}})
	}
	log.Debug().Str("backend", backend.Name()).Int64("seed", a.cfg.Seed).Msg("pipeline ready")
	return shading.New(backend)
}
