// Command loadremover cuts load screens out of a gameplay recording and
// prints the remaining run time.
//
//	loadremover [flags] <input video> <output video>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lkarlslund/loadremover/internal/cli"
	"github.com/lkarlslund/loadremover/internal/config"
	"github.com/lkarlslund/loadremover/internal/logger"
	"github.com/lkarlslund/loadremover/internal/match"
	"github.com/lkarlslund/loadremover/internal/pipeline"
	"github.com/lkarlslund/loadremover/internal/timecode"
	"github.com/lkarlslund/loadremover/internal/video"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

const progressThrottle = 100 * time.Millisecond

// errReported marks errors the flag set has already printed along with usage.
var errReported = errors.New("already reported")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type job struct {
	input, output string
	window        video.Window
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return cli.ExitUsage
	}

	j, err := parseArgs(args, cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return cli.ExitOK
	}
	if errors.Is(err, errReported) {
		return cli.ExitUsage
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return cli.ExitUsage
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return cli.ExitUsage
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := removeLoads(ctx, log, cfg, j, stdout, stderr); err != nil {
		log.Error("load removal failed", zap.Error(err))
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (job, error) {
	set := flag.NewFlagSet("loadremover", flag.ContinueOnError)
	set.SetOutput(stderr)
	set.Usage = func() {
		fmt.Fprintln(set.Output(), "Remove loading frames from a video and report the run time.")
		fmt.Fprintln(set.Output(), "\nUsage: loadremover [flags] <input video> <output video>")
		set.PrintDefaults()
	}

	start := set.String("start", "", "Start timecode (HH:MM:SS.mmm)")
	end := set.String("end", "", "End timecode (HH:MM:SS.mmm)")
	mode := set.String("mode", string(cfg.Mode), "Detection mode: template or black")
	set.StringVar(&cfg.Template, "template", cfg.Template, "Path to the loading sprite")
	set.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Match score at or above which a frame is a load screen")
	set.Float64Var(&cfg.BlackLevel, "black-level", cfg.BlackLevel, "Black mode: max mean gray value of a load screen (0=black, 255=white)")
	set.StringVar(&cfg.ROI, "roi", cfg.ROI, "Region of interest as x,y,w,h (pixels)")
	set.StringVar(&cfg.Codec, "codec", cfg.Codec, "FourCC of the output codec")
	set.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	set.BoolVar(&cfg.Progress, "progress", cfg.Progress, "Show a progress bar")

	if err := set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return job{}, err
		}
		return job{}, fmt.Errorf("%w: %w", errReported, err)
	}
	if set.NArg() != 2 {
		set.Usage()
		return job{}, fmt.Errorf("%w: expected input and output paths, got %d arguments", config.ErrInvalid, set.NArg())
	}
	cfg.Mode = config.Mode(*mode)
	if err := cfg.Validate(); err != nil {
		return job{}, err
	}

	j := job{input: set.Arg(0), output: set.Arg(1)}
	var err error
	if *start != "" {
		if j.window.Start, err = timecode.Parse(*start); err != nil {
			return job{}, fmt.Errorf("-start: %w", err)
		}
	}
	if *end != "" {
		if j.window.End, err = timecode.Parse(*end); err != nil {
			return job{}, fmt.Errorf("-end: %w", err)
		}
		if j.window.End <= j.window.Start {
			return job{}, fmt.Errorf("%w: -end %s is not after -start %s", config.ErrInvalid, *end, timecode.Format(j.window.Start))
		}
	}
	return j, nil
}

// frameChecker is implemented by detectors that can reject a frame size up front.
type frameChecker interface {
	CheckFrameSize(size image.Point) error
}

type detector interface {
	match.Detector
	frameChecker
	io.Closer
}

type blackDetector struct {
	*match.BlackFrameDetector
}

func (blackDetector) Close() error { return nil }

type templateDetector struct {
	*match.Matcher
}

func (d templateDetector) Close() error {
	d.Matcher.Close()
	return d.Template().Close()
}

// newDetector returns the detector for cfg and the score threshold it uses.
func newDetector(log *zap.Logger, cfg *config.Config) (detector, float64, error) {
	roi, err := cfg.Region()
	if err != nil {
		return nil, 0, err
	}
	if cfg.Mode == config.ModeBlack {
		log.Info("using black frame detection", zap.Float64("black_level", cfg.BlackLevel), zap.Stringer("roi", roi))
		return blackDetector{match.NewBlackFrameDetector(roi)}, match.BlackThreshold(cfg.BlackLevel), nil
	}

	tmpl, err := match.LoadTemplate(cfg.Template)
	if err != nil {
		return nil, 0, fmt.Errorf("load template %s: %w", cfg.Template, err)
	}
	log.Info("loaded template",
		zap.String("path", cfg.Template),
		zap.Int("width", tmpl.Size().X),
		zap.Int("height", tmpl.Size().Y),
		zap.Float64("threshold", cfg.Threshold),
	)
	return templateDetector{match.NewMatcher(tmpl, roi)}, cfg.Threshold, nil
}

func removeLoads(ctx context.Context, log *zap.Logger, cfg *config.Config, j job, stdout, stderr io.Writer) (err error) {
	det, threshold, err := newDetector(log, cfg)
	if err != nil {
		return err
	}
	defer det.Close()

	src, err := video.OpenSource(j.input, j.window)
	if err != nil {
		return err
	}
	defer src.Close()

	info := src.Info()
	log.Info("opened input",
		zap.String("path", j.input),
		zap.Float64("fps", info.FPS),
		zap.Int("width", info.Size.X),
		zap.Int("height", info.Size.Y),
		zap.Int("frames", info.FrameCount),
	)
	if err := det.CheckFrameSize(info.Size); err != nil {
		return fmt.Errorf("input %s: %w", j.input, err)
	}

	sink, err := video.CreateSink(j.output, cfg.Codec, info.FPS, info.Size)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	opts := pipeline.Options{Threshold: threshold, Logger: log}
	if cfg.Progress {
		bar := progressbar.NewOptions64(int64(src.Expected()),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("frames"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frame"),
			progressbar.OptionThrottle(progressThrottle),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(stderr) }),
		)
		defer bar.Finish()
		opts.OnFrame = func(*video.Frame, match.Result, bool) { bar.Add(1) }
	}

	p, err := pipeline.New(det, opts)
	if err != nil {
		return err
	}
	stats, err := p.Run(ctx, src, sink)
	if err != nil {
		return err
	}
	if missing := src.Shortfall(); missing > 0 {
		log.Warn("input ended early, decoder may have stopped on a damaged frame",
			zap.String("path", j.input),
			zap.Int("expected", src.Expected()),
			zap.Int("read", stats.Read),
			zap.Int("missing", missing),
		)
	}

	log.Info("finished",
		zap.String("output", j.output),
		zap.Int("read", stats.Read),
		zap.Int("kept", stats.Kept),
		zap.Int("dropped", stats.Dropped),
		zap.Int("load_screens", stats.Segments),
	)

	report := timecode.Report{Duration: info.Duration(stats.Kept), Penalties: timecode.DefaultPenalties}
	_, err = report.WriteTo(stdout)
	return err
}
