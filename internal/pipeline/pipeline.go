// Package pipeline drops load screen frames from a frame stream.
//
// Each frame is scored on its own by a match.Detector and dropped when the
// score reaches the threshold. No state is carried between frames, so a
// single frame scoring just under the threshold inside a load screen is kept.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lkarlslund/loadremover/internal/match"
	"github.com/lkarlslund/loadremover/internal/video"
	"go.uber.org/zap"
)

// Source yields frames in order and io.EOF once exhausted.
type Source interface {
	Next() (*video.Frame, error)
}

// Sink receives kept frames in order.
type Sink interface {
	Write(f *video.Frame) error
}

type Options struct {
	// Threshold is inclusive: a score >= Threshold drops the frame.
	Threshold float64

	// OnFrame, if set, is called once per decoded frame after the decision.
	OnFrame func(f *video.Frame, res match.Result, dropped bool)

	Logger *zap.Logger
}

type Pipeline struct {
	detector match.Detector
	opts     Options
	log      *zap.Logger
}

func New(detector match.Detector, opts Options) (*Pipeline, error) {
	if detector == nil {
		return nil, errors.New("pipeline: nil detector")
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("pipeline: threshold %v must be in (0, 1]", opts.Threshold)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{detector: detector, opts: opts, log: log}, nil
}

// IsLoadScreen applies the threshold rule to a score.
func (p *Pipeline) IsLoadScreen(score float64) bool {
	return score >= p.opts.Threshold
}

// Stats summarizes a run.
type Stats struct {
	Read     int
	Kept     int
	Dropped  int
	Segments int // runs of consecutive dropped frames
}

// Filter returns a lazy iterator over the kept frames of src.
func (p *Pipeline) Filter(src Source) *Filter {
	return &Filter{p: p, src: src}
}

// Run copies every kept frame from src to dst. Cancelling ctx stops the run
// before the next frame is read, including inside a stretch of dropped frames;
// closing src and dst stays with the caller.
func (p *Pipeline) Run(ctx context.Context, src Source, dst Sink) (Stats, error) {
	f := p.Filter(src)
	for {
		frame, err := f.Next(ctx)
		if errors.Is(err, io.EOF) {
			return f.Stats(), nil
		}
		if err != nil {
			return f.Stats(), err
		}

		err = dst.Write(frame)
		frame.Close()
		if err != nil {
			return f.Stats(), err
		}
	}
}

// Filter yields kept frames one at a time. It is not restartable.
type Filter struct {
	p       *Pipeline
	src     Source
	stats   Stats
	inLoad  bool
	lastIdx int
	done    bool
	err     error
}

// Next returns the next kept frame, or io.EOF when the source is exhausted.
// Dropped frames are closed here; the caller owns returned frames. ctx is
// checked before every read. After an error every later call returns the
// same error.
func (f *Filter) Next(ctx context.Context) (*video.Frame, error) {
	if f.done {
		return nil, f.err
	}
	for {
		if err := ctx.Err(); err != nil {
			f.finish(err)
			return nil, err
		}

		frame, err := f.src.Next()
		if errors.Is(err, io.EOF) {
			f.finish(io.EOF)
			return nil, io.EOF
		}
		if err != nil {
			f.finish(fmt.Errorf("read frame %d: %w", f.stats.Read, err))
			return nil, f.err
		}
		f.stats.Read++

		res, err := f.p.detector.Detect(frame.Mat)
		if err != nil {
			frame.Close()
			f.finish(fmt.Errorf("detect frame %d: %w", frame.Index, err))
			return nil, f.err
		}

		dropped := f.p.IsLoadScreen(res.Score)
		f.track(frame, res, dropped)
		if f.p.opts.OnFrame != nil {
			f.p.opts.OnFrame(frame, res, dropped)
		}

		if dropped {
			frame.Close()
			continue
		}
		f.stats.Kept++
		return frame, nil
	}
}

func (f *Filter) Stats() Stats {
	return f.stats
}

func (f *Filter) finish(err error) {
	f.done = true
	f.err = err
	if f.inLoad {
		f.p.log.Debug("load screen ended at end of input", zap.Int("last_frame", f.lastIdx))
	}
}

func (f *Filter) track(frame *video.Frame, res match.Result, dropped bool) {
	switch {
	case dropped && !f.inLoad:
		f.inLoad = true
		f.stats.Segments++
		f.p.log.Debug("load screen started",
			zap.Int("frame", frame.Index),
			zap.Duration("at", frame.Timestamp),
			zap.Float64("score", res.Score),
		)
	case !dropped && f.inLoad:
		f.inLoad = false
		f.p.log.Debug("load screen ended",
			zap.Int("frame", frame.Index),
			zap.Duration("at", frame.Timestamp),
		)
	}
	if dropped {
		f.stats.Dropped++
	}
	f.lastIdx = frame.Index
}
