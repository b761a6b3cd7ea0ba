package match

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Matcher finds a template in frames using normalized correlation
// coefficients (TM_CCOEFF_NORMED), which ignore uniform brightness and
// contrast shifts introduced by lossy encoding.
type Matcher struct {
	tmpl *Template
	roi  image.Rectangle
}

// NewMatcher returns a matcher over the whole frame. If roi is not empty, only
// that part of the frame is searched.
func NewMatcher(t *Template, roi image.Rectangle) *Matcher {
	return &Matcher{tmpl: t, roi: roi}
}

func (m *Matcher) Template() *Template {
	return m.tmpl
}

// Close is a no-op; the template is owned by the caller.
func (m *Matcher) Close() error {
	return nil
}

// CheckFrameSize validates a frame size once, before any frames are processed.
func (m *Matcher) CheckFrameSize(size image.Point) error {
	area := image.Rectangle{Max: size}
	if !m.roi.Empty() {
		if !m.roi.In(area) {
			return fmt.Errorf("%w: roi %v outside frame %dx%d", ErrFrameTooSmall, m.roi, size.X, size.Y)
		}
		area = m.roi
	}
	return m.tmpl.CheckSize(area.Size())
}

// Detect implements Detector.
func (m *Matcher) Detect(frame gocv.Mat) (Result, error) {
	return m.Match(frame)
}

// Match returns the best correlation anywhere in the frame, clamped to [0, 1].
func (m *Matcher) Match(frame gocv.Mat) (Result, error) {
	response, origin, err := m.response(frame)
	if err != nil {
		return Result{}, err
	}
	defer response.Close()

	score, cell, err := Best(response)
	if err != nil {
		return Result{}, err
	}
	return m.ResultAt(score, cell.Add(origin)), nil
}

// ResultAt builds the result for a template placed at loc in frame coordinates.
func (m *Matcher) ResultAt(score float64, loc image.Point) Result {
	return Result{
		Score:    clamp01(score),
		Location: loc,
		Rect:     image.Rectangle{Min: loc, Max: loc.Add(m.tmpl.Size())},
	}
}

// Response returns the full CV_32F correlation map and the frame coordinate of
// its top-left cell. The caller owns the returned Mat.
func (m *Matcher) Response(frame gocv.Mat) (gocv.Mat, image.Point, error) {
	return m.response(frame)
}

func (m *Matcher) response(frame gocv.Mat) (gocv.Mat, image.Point, error) {
	if frame.Empty() {
		return gocv.Mat{}, image.Point{}, ErrEmptyFrame
	}
	if frame.Type() != m.tmpl.mat.Type() {
		return gocv.Mat{}, image.Point{}, fmt.Errorf("%w: frame %v, template %v", ErrTypeMismatch, frame.Type(), m.tmpl.mat.Type())
	}
	if err := m.CheckFrameSize(image.Pt(frame.Cols(), frame.Rows())); err != nil {
		return gocv.Mat{}, image.Point{}, err
	}

	search := frame
	var origin image.Point
	if !m.roi.Empty() {
		search = frame.Region(m.roi)
		defer search.Close()
		origin = m.roi.Min
	}

	mask := m.tmpl.mask
	if !m.tmpl.Masked() {
		mask = gocv.NewMat()
		defer mask.Close()
	}

	result := gocv.NewMat()
	gocv.MatchTemplate(search, m.tmpl.mat, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		result.Close()
		return gocv.Mat{}, image.Point{}, fmt.Errorf("match template %q: empty response", m.tmpl.Name)
	}
	return result, origin, nil
}
