// Package video wraps gocv capture and writer handles as frame sources and sinks.
package video

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

var (
	ErrOpenSource = errors.New("cannot open input")
	ErrDecode     = errors.New("cannot decode frame")
	ErrOpenSink   = errors.New("cannot open output")
	ErrWrite      = errors.New("cannot write output")
)

// Frame is one decoded picture and its position in the source.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Mat       gocv.Mat
}

// Size returns the frame width and height.
func (f *Frame) Size() image.Point {
	return image.Pt(f.Mat.Cols(), f.Mat.Rows())
}

func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Info describes a video stream.
type Info struct {
	FPS        float64
	Size       image.Point
	FrameCount int
}

// FrameDuration is the display time of one frame.
func (i Info) FrameDuration() time.Duration {
	if i.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / i.FPS)
}

// Duration is how long n frames play at the stream rate.
func (i Info) Duration(n int) time.Duration {
	if i.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(n) / i.FPS * float64(time.Second))
}
