package match

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func toMat(t *testing.T, img image.Image) gocv.Mat {
	t.Helper()
	mat, err := gocv.ImageToMatRGB(img)
	require.NoError(t, err)
	t.Cleanup(func() { mat.Close() })
	return mat
}

func mustTemplate(t *testing.T, img image.Image) *Template {
	t.Helper()
	tmpl, err := TemplateFromImage("loading", img)
	require.NoError(t, err)
	t.Cleanup(func() { tmpl.Close() })
	return tmpl
}

func newMatcher(t *testing.T, tmpl *Template, roi image.Rectangle) *Matcher {
	t.Helper()
	m := NewMatcher(tmpl, roi)
	t.Cleanup(func() { m.Close() })
	return m
}
