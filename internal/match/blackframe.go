package match

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"
	"gocv.io/x/gocv"
)

// BlackFrameDetector scores how dark a frame is. It suits games whose load
// screens are plain black rather than showing a sprite.
//
// Score is 1 - mean/255 over the grayscale region of interest, so a pure black
// frame scores 1 and a pure white one 0.
type BlackFrameDetector struct {
	roi image.Rectangle
}

// NewBlackFrameDetector checks the whole frame, or only roi when it is not empty.
func NewBlackFrameDetector(roi image.Rectangle) *BlackFrameDetector {
	return &BlackFrameDetector{roi: roi}
}

// BlackThreshold converts a maximum mean gray level (0 black, 255 white) into
// a score threshold: frames with mean <= level score >= the returned value.
func BlackThreshold(level float64) float64 {
	return 1 - level/255
}

// CheckFrameSize validates that the region of interest lies inside the frame.
func (d *BlackFrameDetector) CheckFrameSize(size image.Point) error {
	if d.roi.Empty() {
		return nil
	}
	if !d.roi.In(image.Rectangle{Max: size}) {
		return fmt.Errorf("%w: roi %v outside frame %dx%d", ErrFrameTooSmall, d.roi, size.X, size.Y)
	}
	return nil
}

func (d *BlackFrameDetector) Detect(frame gocv.Mat) (Result, error) {
	if frame.Empty() {
		return Result{}, ErrEmptyFrame
	}
	if err := d.CheckFrameSize(image.Pt(frame.Cols(), frame.Rows())); err != nil {
		return Result{}, err
	}

	img, err := frame.ToImage()
	if err != nil {
		return Result{}, fmt.Errorf("convert frame: %w", err)
	}
	mean, rect := d.meanGray(img)

	return Result{
		Score:    clamp01(1 - mean/255),
		Location: rect.Min,
		Rect:     rect,
	}, nil
}

func (d *BlackFrameDetector) meanGray(img image.Image) (float64, image.Rectangle) {
	rect := img.Bounds()
	filters := []gift.Filter{}
	if !d.roi.Empty() {
		rect = d.roi.Add(img.Bounds().Min)
		filters = append(filters, gift.Crop(rect))
	}
	filters = append(filters, gift.Grayscale())

	g := gift.New(filters...)
	gray := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(gray, img)

	b := gray.Bounds()
	if b.Empty() {
		return 0, rect
	}
	var sum uint64
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for _, v := range row {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(b.Dx()*b.Dy()), rect
}
