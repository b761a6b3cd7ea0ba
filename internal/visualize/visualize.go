// Package visualize draws template matches onto a still image for tuning the
// threshold and checking a sprite against a screenshot.
package visualize

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/lkarlslund/loadremover/internal/match"
	"gocv.io/x/gocv"
)

var (
	hitColor  = color.RGBA{255, 0, 0, 0}
	bestColor = color.RGBA{0, 255, 0, 0}
)

// Annotation is the outcome of Annotate.
type Annotation struct {
	Best match.Result
	// Hits are the match rectangles at or above the threshold.
	Hits []image.Rectangle
}

// Annotate returns a copy of img with a thin box at every offset scoring at
// least threshold and a thick, labelled box at the best match. The caller owns
// the returned Mat.
func Annotate(img gocv.Mat, m *match.Matcher, threshold float64) (gocv.Mat, Annotation, error) {
	response, origin, err := m.Response(img)
	if err != nil {
		return gocv.Mat{}, Annotation{}, err
	}
	defer response.Close()

	score, cell, err := match.Best(response)
	if err != nil {
		return gocv.Mat{}, Annotation{}, err
	}
	best := m.ResultAt(score, cell.Add(origin))

	data, err := response.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, Annotation{}, fmt.Errorf("read response: %w", err)
	}
	size := m.Template().Size()
	cols := response.Cols()
	var hits []image.Rectangle
	for i, v := range data {
		if match.ValidScore(v) && float64(v) >= threshold {
			p := image.Pt(i%cols, i/cols).Add(origin)
			hits = append(hits, image.Rectangle{Min: p, Max: p.Add(size)})
		}
	}

	out := img.Clone()
	for _, r := range hits {
		gocv.Rectangle(&out, r, hitColor, 1)
	}
	gocv.Rectangle(&out, best.Rect, bestColor, 2)
	label := fmt.Sprintf("%.3f %s", best.Score, m.Template().Name)
	gocv.PutText(&out, label, labelOrigin(best.Rect, out.Rows()), gocv.FontHersheyPlain, 1, bestColor, 1)

	return out, Annotation{Best: best, Hits: hits}, nil
}

// labelOrigin places text above the box, or inside it when the box touches the top edge.
func labelOrigin(r image.Rectangle, rows int) image.Point {
	p := r.Min.Add(image.Pt(2, -4))
	if p.Y < 12 {
		p.Y = r.Min.Y + 14
	}
	if p.Y >= rows {
		p.Y = rows - 1
	}
	return p
}

var (
	ErrReadImage  = errors.New("cannot read image")
	ErrWriteImage = errors.New("cannot write image")
)

// ReadImage loads a still image as 8-bit BGR.
func ReadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrReadImage, path)
	}
	return img, nil
}

// WriteImage encodes img, picking the format from the file extension.
func WriteImage(path string, img gocv.Mat) error {
	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("%w: %s", ErrWriteImage, path)
	}
	return nil
}
