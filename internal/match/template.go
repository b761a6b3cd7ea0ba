package match

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

var (
	ErrTemplateUnreadable = errors.New("template unreadable")
	ErrTemplateFlat       = errors.New("template has no contrast")
	ErrFrameTooSmall      = errors.New("frame smaller than template")
	ErrEmptyFrame         = errors.New("empty frame")
	ErrTypeMismatch       = errors.New("frame and template pixel formats differ")
)

// Pixels with alpha below this are left out of matching.
const alphaCutoff = 128

// Template is the reference sprite. It is loaded once and only read afterwards.
// Sprites with transparency carry a mask so only opaque pixels are compared.
type Template struct {
	Name string
	mat  gocv.Mat
	mask gocv.Mat
}

// LoadTemplate reads a sprite from disk as 8-bit BGR, plus an alpha mask when
// the file has transparent pixels.
func LoadTemplate(path string) (*Template, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: could not decode %s", ErrTemplateUnreadable, path)
	}

	mask, err := readAlphaMask(path)
	if err != nil {
		mat.Close()
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return newTemplate(name, mat, mask)
}

// readAlphaMask returns an empty Mat unless the file has a partly transparent alpha channel.
func readAlphaMask(path string) (gocv.Mat, error) {
	raw := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer raw.Close()
	if raw.Channels() != 4 {
		return gocv.NewMat(), nil
	}

	channels := gocv.Split(raw)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	alpha := channels[3]
	if alpha.Type() != gocv.MatTypeCV8U {
		// 16-bit PNG
		alpha8 := gocv.NewMat()
		defer alpha8.Close()
		alpha.ConvertToWithParams(&alpha8, gocv.MatTypeCV8U, 1.0/257, 0)
		alpha = alpha8
	}
	return binaryMask(alpha)
}

// binaryMask thresholds alpha into a 0/255 mask, or returns an empty Mat if
// every pixel is opaque.
func binaryMask(alpha gocv.Mat) (gocv.Mat, error) {
	if minVal, _, _, _ := gocv.MinMaxLoc(alpha); minVal >= alphaCutoff {
		return gocv.NewMat(), nil
	}
	mask := gocv.NewMat()
	gocv.Threshold(alpha, &mask, alphaCutoff-1, 255, gocv.ThresholdBinary)
	if mask.Empty() {
		mask.Close()
		return gocv.Mat{}, fmt.Errorf("%w: could not build alpha mask", ErrTemplateUnreadable)
	}
	return mask, nil
}

// TemplateFromImage converts an in-memory image into a template. Non-opaque
// images get an alpha mask.
func TemplateFromImage(name string, img image.Image) (*Template, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrTemplateUnreadable, name)
	}

	mask := gocv.NewMat()
	if o, ok := img.(interface{ Opaque() bool }); !ok || !o.Opaque() {
		b := img.Bounds()
		alpha := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				a := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA).A
				alpha.SetGray(x, y, color.Gray{Y: a})
			}
		}
		alphaMat, err := gocv.ImageGrayToMatGray(alpha)
		if err != nil {
			mat.Close()
			mask.Close()
			return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
		}
		mask.Close()
		mask, err = binaryMask(alphaMat)
		alphaMat.Close()
		if err != nil {
			mat.Close()
			return nil, err
		}
	}
	return newTemplate(name, mat, mask)
}

// newTemplate takes ownership of mat and mask and rejects sprites that cannot
// be correlated: a sprite of one colour matches nothing meaningfully.
func newTemplate(name string, mat, mask gocv.Mat) (*Template, error) {
	t := &Template{Name: name, mat: mat, mask: mask}
	if err := t.checkContrast(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Template) checkContrast() error {
	pix := t.mat.ToBytes()
	var maskPix []byte
	if t.Masked() {
		maskPix = t.mask.ToBytes()
	}

	ch := t.mat.Channels()
	var lo, hi []byte
	for i := 0; i*ch < len(pix); i++ {
		if maskPix != nil && maskPix[i] == 0 {
			continue
		}
		p := pix[i*ch : i*ch+ch]
		if lo == nil {
			lo = append([]byte(nil), p...)
			hi = append([]byte(nil), p...)
			continue
		}
		for c, v := range p {
			if v < lo[c] {
				lo[c] = v
			}
			if v > hi[c] {
				hi[c] = v
			}
		}
	}
	if lo == nil {
		return fmt.Errorf("%w: %s is fully transparent", ErrTemplateFlat, t.Name)
	}
	for c := range lo {
		if lo[c] != hi[c] {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is a single colour", ErrTemplateFlat, t.Name)
}

// Size returns width and height in pixels.
func (t *Template) Size() image.Point {
	return image.Pt(t.mat.Cols(), t.mat.Rows())
}

// Mat exposes the sprite pixels. Callers must not modify or close it.
func (t *Template) Mat() gocv.Mat {
	return t.mat
}

// Masked reports whether the sprite has transparent pixels.
func (t *Template) Masked() bool {
	return !t.mask.Empty()
}

func (t *Template) Close() error {
	t.mask.Close()
	return t.mat.Close()
}

// CheckSize reports whether a frame of the given size can hold the template.
func (t *Template) CheckSize(frame image.Point) error {
	ts := t.Size()
	if frame.X < ts.X || frame.Y < ts.Y {
		return fmt.Errorf("%w: frame %dx%d, template %q %dx%d",
			ErrFrameTooSmall, frame.X, frame.Y, t.Name, ts.X, ts.Y)
	}
	return nil
}
