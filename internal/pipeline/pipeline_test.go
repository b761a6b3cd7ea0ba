package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"math/rand"
	"testing"

	"github.com/lkarlslund/loadremover/internal/match"
	"github.com/lkarlslund/loadremover/internal/testimg"
	"github.com/lkarlslund/loadremover/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type sliceSource struct {
	frames []*video.Frame
	pos    int
	failAt int // index returning errAt, -1 for never
	errAt  error
}

func newSliceSource(frames []*video.Frame) *sliceSource {
	return &sliceSource{frames: frames, failAt: -1}
}

func (s *sliceSource) Next() (*video.Frame, error) {
	if s.pos == s.failAt {
		return nil, s.errAt
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

type recordingSink struct {
	indices []int
	failAt  int
}

func (s *recordingSink) Write(f *video.Frame) error {
	if s.failAt > 0 && len(s.indices) == s.failAt {
		return video.ErrWrite
	}
	s.indices = append(s.indices, f.Index)
	return nil
}

// scripted returns scores in call order.
type scripted struct {
	scores []float64
	calls  int
	after  func(calls int)
}

func (d *scripted) Detect(gocv.Mat) (match.Result, error) {
	s := d.scores[d.calls]
	d.calls++
	if d.after != nil {
		d.after(d.calls)
	}
	return match.Result{Score: s}, nil
}

type failing struct{}

func (failing) Detect(gocv.Mat) (match.Result, error) {
	return match.Result{}, match.ErrFrameTooSmall
}

func emptyFrames(n int) []*video.Frame {
	frames := make([]*video.Frame, n)
	for i := range frames {
		frames[i] = &video.Frame{Index: i, Mat: gocv.NewMat()}
	}
	return frames
}

func run(t *testing.T, scores []float64, threshold float64) ([]int, Stats) {
	t.Helper()
	p, err := New(&scripted{scores: scores}, Options{Threshold: threshold})
	require.NoError(t, err)

	sink := &recordingSink{}
	stats, err := p.Run(context.Background(), newSliceSource(emptyFrames(len(scores))), sink)
	require.NoError(t, err)
	return sink.indices, stats
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Options{Threshold: 0.9})
	assert.Error(t, err)

	_, err = New(&scripted{}, Options{Threshold: 0})
	assert.Error(t, err)

	_, err = New(&scripted{}, Options{Threshold: 1.01})
	assert.Error(t, err)
}

func TestThresholdIsInclusive(t *testing.T) {
	const threshold = 0.9
	kept, stats := run(t, []float64{threshold, threshold + 1e-6, threshold - 1e-6, 0}, threshold)

	assert.Equal(t, []int{2, 3}, kept)
	assert.Equal(t, Stats{Read: 4, Kept: 2, Dropped: 2, Segments: 1}, stats)
}

func TestOrderPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scores := make([]float64, 500)
	var want []int
	for i := range scores {
		scores[i] = rng.Float64()
		if scores[i] < 0.7 {
			want = append(want, i)
		}
	}

	kept, stats := run(t, scores, 0.7)

	assert.Equal(t, want, kept)
	for i := 1; i < len(kept); i++ {
		assert.Greater(t, kept[i], kept[i-1])
	}
	assert.Equal(t, len(scores), stats.Read)
	assert.Equal(t, stats.Read, stats.Kept+stats.Dropped)
}

func TestSegmentsCounted(t *testing.T) {
	_, stats := run(t, []float64{0, 1, 1, 0, 0.95, 0, 1}, 0.9)
	assert.Equal(t, 3, stats.Segments)
	assert.Equal(t, 4, stats.Dropped)
}

func TestOnFrameSeesEveryFrame(t *testing.T) {
	var seen []int
	var drops int
	p, err := New(&scripted{scores: []float64{0.1, 0.95, 0.2}}, Options{
		Threshold: 0.9,
		OnFrame: func(f *video.Frame, res match.Result, dropped bool) {
			seen = append(seen, f.Index)
			if dropped {
				drops++
			}
		},
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), newSliceSource(emptyFrames(3)), &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 1, drops)
}

func TestFilterIsLazy(t *testing.T) {
	det := &scripted{scores: []float64{1, 0, 1, 1, 0}}
	p, err := New(det, Options{Threshold: 0.9})
	require.NoError(t, err)

	f := p.Filter(newSliceSource(emptyFrames(5)))
	assert.Zero(t, det.calls)

	frame, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Index)
	assert.Equal(t, 2, det.calls)

	frame, err = f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, frame.Index)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeErrorIsFatal(t *testing.T) {
	src := newSliceSource(emptyFrames(5))
	src.failAt = 3
	src.errAt = video.ErrDecode

	p, err := New(&scripted{scores: []float64{0, 0, 0, 0, 0}}, Options{Threshold: 0.9})
	require.NoError(t, err)

	sink := &recordingSink{}
	stats, err := p.Run(context.Background(), src, sink)
	assert.ErrorIs(t, err, video.ErrDecode)
	assert.Equal(t, []int{0, 1, 2}, sink.indices)
	assert.Equal(t, 3, stats.Read)
}

func TestDetectorErrorIsFatal(t *testing.T) {
	p, err := New(failing{}, Options{Threshold: 0.9})
	require.NoError(t, err)

	f := p.Filter(newSliceSource(emptyFrames(2)))
	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, match.ErrFrameTooSmall)

	_, again := f.Next(context.Background())
	assert.Equal(t, err, again)
}

func TestSinkErrorIsFatal(t *testing.T) {
	p, err := New(&scripted{scores: []float64{0, 0, 0, 0}}, Options{Threshold: 0.9})
	require.NoError(t, err)

	sink := &recordingSink{failAt: 2}
	_, err = p.Run(context.Background(), newSliceSource(emptyFrames(4)), sink)
	assert.ErrorIs(t, err, video.ErrWrite)
	assert.Equal(t, []int{0, 1}, sink.indices)
}

func TestRunHonoursCancel(t *testing.T) {
	p, err := New(&scripted{scores: []float64{0, 0}}, Options{Threshold: 0.9})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	_, err = p.Run(ctx, newSliceSource(emptyFrames(2)), sink)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, sink.indices)
}

func TestCancelInsideLoadSegment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Every frame is a load screen, so Run never gets a kept frame back.
	det := &scripted{scores: []float64{1, 1, 1, 1, 1}}
	det.after = func(calls int) {
		if calls == 2 {
			cancel()
		}
	}
	p, err := New(det, Options{Threshold: 0.9})
	require.NoError(t, err)

	sink := &recordingSink{}
	stats, err := p.Run(ctx, newSliceSource(emptyFrames(5)), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, det.calls)
	assert.Equal(t, Stats{Read: 2, Dropped: 2, Segments: 1}, stats)
	assert.Empty(t, sink.indices)
}

func TestFilterStopsOnCancel(t *testing.T) {
	p, err := New(&scripted{scores: []float64{0, 0, 0}}, Options{Threshold: 0.9})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f := p.Filter(newSliceSource(emptyFrames(3)))

	frame, err := f.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)

	cancel()
	_, err = f.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.Stats().Read)
}

func TestEndToEndWithTemplateMatcher(t *testing.T) {
	const w, h = 64, 48
	sprite := testimg.Checker(w, h, 8)

	tmpl, err := match.TemplateFromImage("loading", sprite)
	require.NoError(t, err)
	defer tmpl.Close()
	matcher := match.NewMatcher(tmpl, image.Rectangle{})
	defer matcher.Close()

	// Positions 1..10; 3-5 show the load sprite.
	images := []image.Image{
		testimg.Fill(w, h, color.RGBA{10, 120, 30, 255}),
		testimg.Invert(sprite),
		sprite, sprite, sprite,
		testimg.Fill(w, h, color.RGBA{200, 200, 200, 255}),
		testimg.Fill(w, h, color.RGBA{0, 0, 0, 255}),
		testimg.Invert(sprite),
		testimg.Fill(w, h, color.RGBA{120, 20, 90, 255}),
		testimg.Fill(w, h, color.RGBA{255, 255, 255, 255}),
	}
	frames := make([]*video.Frame, len(images))
	for i, img := range images {
		mat, err := gocv.ImageToMatRGB(img)
		require.NoError(t, err)
		frames[i] = &video.Frame{Index: i, Mat: mat}
	}

	p, err := New(matcher, Options{Threshold: 0.9})
	require.NoError(t, err)

	sink := &recordingSink{}
	stats, err := p.Run(context.Background(), newSliceSource(frames), sink)
	require.NoError(t, err)

	positions := make([]int, len(sink.indices))
	for i, idx := range sink.indices {
		positions[i] = idx + 1
	}
	assert.Equal(t, []int{1, 2, 6, 7, 8, 9, 10}, positions)
	assert.Equal(t, Stats{Read: 10, Kept: 7, Dropped: 3, Segments: 1}, stats)
}
