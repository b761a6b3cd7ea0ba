package match

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Masked correlation divides by the variance under the mask, so flat parts of
// a frame yield inf or NaN cells. Cells outside this slack around [-1, 1] are
// ignored.
const scoreSlack = 1e-3

// Result is the outcome of scoring one frame.
type Result struct {
	// Score is normalized to [0, 1]; higher means more load-screen-like.
	Score    float64
	Location image.Point
	Rect     image.Rectangle
}

// Detector scores a single frame. Implementations keep no state between calls.
type Detector interface {
	Detect(frame gocv.Mat) (Result, error)
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ValidScore reports whether a correlation cell holds a usable coefficient.
func ValidScore(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && f >= -1-scoreSlack && f <= 1+scoreSlack
}

// Best returns the highest valid cell of a CV_32F response map and its
// position in map coordinates. A map without valid cells scores 0.
func Best(response gocv.Mat) (float64, image.Point, error) {
	data, err := response.DataPtrFloat32()
	if err != nil {
		return 0, image.Point{}, fmt.Errorf("read response: %w", err)
	}
	cols := response.Cols()
	if cols == 0 {
		return 0, image.Point{}, nil
	}

	at := -1
	var best float32
	for i, v := range data {
		if ValidScore(v) && (at < 0 || v > best) {
			best, at = v, i
		}
	}
	if at < 0 {
		return 0, image.Point{}, nil
	}
	return clamp01(float64(best)), image.Pt(at%cols, at/cols), nil
}
