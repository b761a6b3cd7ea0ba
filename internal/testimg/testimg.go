// Package testimg builds synthetic frames and sprites for tests.
package testimg

import (
	"image"
	"image/color"
	"image/draw"
)

var (
	Light = color.RGBA{220, 200, 40, 255}
	Dark  = color.RGBA{20, 30, 160, 255}
)

// Checker draws a two-colour checkerboard with square cells of the given size.
func Checker(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := Light
			if (x/cell+y/cell)%2 == 1 {
				c = Dark
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Fill returns a w x h image of one colour.
func Fill(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// Composite draws src over a copy of dst at p, honouring src alpha.
func Composite(dst, src image.Image, p image.Point) *image.RGBA {
	out := image.NewRGBA(dst.Bounds())
	draw.Draw(out, out.Bounds(), dst, image.Point{}, draw.Src)
	draw.Draw(out, src.Bounds().Add(p), src, image.Point{}, draw.Over)
	return out
}

// Invert negates every colour channel.
func Invert(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	for i, v := range src.Pix {
		if i%4 == 3 {
			out.Pix[i] = v
			continue
		}
		out.Pix[i] = 255 - v
	}
	return out
}

// Ring is a checkerboard sprite whose centre (inset pixels from each edge) is
// fully transparent.
func Ring(w, h, cell, inset int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	hole := image.Rect(inset, inset, w-inset, h-inset)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if image.Pt(x, y).In(hole) {
				continue
			}
			c := Light
			if (x/cell+y/cell)%2 == 1 {
				c = Dark
			}
			img.SetNRGBA(x, y, color.NRGBA{c.R, c.G, c.B, 255})
		}
	}
	return img
}
