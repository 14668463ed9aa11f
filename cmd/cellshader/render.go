package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/shading"
	"github.com/nvr-ai/go-cellshade/util"
)

// paramFlags collects the processing flags shared by render and plan.
type paramFlags struct {
	edgeThickness    int
	colorLevels      int
	smoothingAmount  int
	saturationAmount float64
	targetWidth      int
	targetHeight     int
	keepRatio        bool
	resolution       string
}

func (p *paramFlags) register(cmd *cobra.Command, processing bool) {
	f := cmd.Flags()
	if processing {
		f.IntVar(&p.edgeThickness, "edge-thickness", shading.DefaultEdgeThickness, "outline thickness (1-10)")
		f.IntVar(&p.colorLevels, "color-levels", shading.DefaultColorLevels, "number of flat colors (2-20)")
		f.IntVar(&p.smoothingAmount, "smoothing", shading.DefaultSmoothingAmount, "smoothing diameter (1-15)")
		f.Float64Var(&p.saturationAmount, "saturation", shading.DefaultSaturationAmount, "saturation multiplier (0-2)")
	}
	f.IntVar(&p.targetWidth, "width", 0, "target width in pixels (1-3840)")
	f.IntVar(&p.targetHeight, "height", 0, "target height in pixels (1-2160)")
	f.BoolVar(&p.keepRatio, "keep-ratio", shading.DefaultKeepRatio, "preserve the aspect ratio")
	f.StringVar(&p.resolution, "resolution", "", "named target resolution such as 720p or 4k (--width and --height win)")
}

// raw returns the parameters given on the command line. Flags left alone are absent.
func (p *paramFlags) raw(cmd *cobra.Command) (shading.RawParameters, error) {
	var raw shading.RawParameters
	f := cmd.Flags()
	if p.resolution != "" {
		res, ok := images.LookupResolution(p.resolution)
		if !ok {
			return raw, errors.Errorf("unknown resolution %q", p.resolution)
		}
		raw.TargetWidth = shading.Ptr(res.Pixels.Width)
		raw.TargetHeight = shading.Ptr(res.Pixels.Height)
	}
	if f.Changed("edge-thickness") {
		raw.EdgeThickness = shading.Ptr(p.edgeThickness)
	}
	if f.Changed("color-levels") {
		raw.ColorLevels = shading.Ptr(p.colorLevels)
	}
	if f.Changed("smoothing") {
		raw.SmoothingAmount = shading.Ptr(p.smoothingAmount)
	}
	if f.Changed("saturation") {
		raw.SaturationAmount = shading.Ptr(p.saturationAmount)
	}
	if f.Changed("width") {
		raw.TargetWidth = shading.Ptr(p.targetWidth)
	}
	if f.Changed("height") {
		raw.TargetHeight = shading.Ptr(p.targetHeight)
	}
	if f.Changed("keep-ratio") {
		raw.KeepRatio = shading.Ptr(p.keepRatio)
	}
	return raw, nil
}

func (a *app) renderCmd() *cobra.Command {
	var (
		params paramFlags
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "render <image>",
		Short: "Cell-shade one image file",
		Long: `Render cell-shades one image and writes the result. Without --output the
render is written to a cell-shaded directory next to the source, named after
the source with a timestamp.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var outFormat images.Format
			if format != "" {
				f, ok := images.ParseFormat(format)
				if !ok {
					return errors.Errorf("unknown output format %q", format)
				}
				outFormat = f
			}

			raw, err := params.raw(cmd)
			if err != nil {
				return err
			}
			src, err := util.LoadImageFile(args[0])
			if err != nil {
				return err
			}

			res, err := a.pipeline().Render(src.Data, raw, shading.RenderOptions{
				Format: outFormat,
				Encode: images.EncodeOptions{JPEGQuality: a.cfg.JPEGQuality},
			})
			if err != nil {
				return err
			}

			if output == "" {
				name := util.RenderedName(src.Path, time.Now(), res.Output.Format.Extension())
				output = filepath.Join(filepath.Dir(src.Path), "cell-shaded", name)
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return errors.Wrap(err, "failed to create output directory")
			}
			if err := os.WriteFile(output, res.Output.Data, 0o644); err != nil {
				return errors.Wrapf(err, "failed to write %s", output)
			}

			class := "below nhd"
			if named, ok := images.GetHighestResolutionUnderDimensions(res.Plan.Width, res.Plan.Height); ok {
				class = string(named.Name)
			}
			log.Info().
				Str("output", output).
				Stringer("plan", res.Plan).
				Str("resolution_class", class).
				Object("timings", res.Timings).
				Float64("mpps", res.Timings.MegapixelsPerSecond()).
				Msg("rendered")
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	params.register(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().StringVar(&format, "format", "", "output format (defaults to the source format)")
	return cmd
}
