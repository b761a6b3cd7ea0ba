// Command loadremover-image runs load screen detection on a single image and
// writes a copy with the matches boxed, for checking a sprite and threshold.
//
//	loadremover-image [flags] <input image> <output image>
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lkarlslund/loadremover/internal/cli"
	"github.com/lkarlslund/loadremover/internal/config"
	"github.com/lkarlslund/loadremover/internal/logger"
	"github.com/lkarlslund/loadremover/internal/match"
	"github.com/lkarlslund/loadremover/internal/visualize"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return cli.ExitUsage
	}

	set := flag.NewFlagSet("loadremover-image", flag.ContinueOnError)
	set.SetOutput(stderr)
	set.Usage = func() {
		fmt.Fprintln(set.Output(), "Usage: loadremover-image [flags] <input image> <output image>")
		set.PrintDefaults()
	}
	set.StringVar(&cfg.Template, "template", cfg.Template, "Path to the loading sprite")
	set.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Score at or above which a location is boxed")
	set.StringVar(&cfg.ROI, "roi", cfg.ROI, "Region of interest as x,y,w,h (pixels)")
	set.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if err := set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitUsage
	}
	if set.NArg() != 2 {
		set.Usage()
		return cli.ExitUsage
	}
	cfg.Mode = config.ModeTemplate
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return cli.ExitUsage
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return cli.ExitUsage
	}
	defer log.Sync()

	if err := annotate(log, cfg, set.Arg(0), set.Arg(1), stdout); err != nil {
		log.Error("troubleshooting failed", zap.Error(err))
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func annotate(log *zap.Logger, cfg *config.Config, input, output string, stdout io.Writer) error {
	roi, err := cfg.Region()
	if err != nil {
		return err
	}
	tmpl, err := match.LoadTemplate(cfg.Template)
	if err != nil {
		return fmt.Errorf("load template %s: %w", cfg.Template, err)
	}
	defer tmpl.Close()
	m := match.NewMatcher(tmpl, roi)
	defer m.Close()

	img, err := visualize.ReadImage(input)
	if err != nil {
		return err
	}
	defer img.Close()

	out, ann, err := visualize.Annotate(img, m, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer out.Close()

	if err := visualize.WriteImage(output, out); err != nil {
		return err
	}

	loading := ann.Best.Score >= cfg.Threshold
	log.Info("annotated",
		zap.String("input", input),
		zap.String("output", output),
		zap.Float64("best_score", ann.Best.Score),
		zap.Stringer("best_rect", ann.Best.Rect),
		zap.Int("hits", len(ann.Hits)),
		zap.Bool("load_screen", loading),
	)
	fmt.Fprintf(stdout, "Best match %.4f at %v (threshold %.4f, load screen: %v)\n",
		ann.Best.Score, ann.Best.Rect.Min, cfg.Threshold, loading)
	return nil
}
