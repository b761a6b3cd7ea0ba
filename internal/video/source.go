package video

import (
	"fmt"
	"image"
	"io"
	"math"
	"time"

	"gocv.io/x/gocv"
)

// Window limits decoding to part of the input. Zero values mean unbounded.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Source reads frames sequentially from a video file.
type Source struct {
	path    string
	capture *gocv.VideoCapture
	info    Info
	window  Window
	next    int
	read    int
	drained bool // decoder reported end of stream
}

// OpenSource opens path for decoding and seeks to w.Start.
func OpenSource(path string, w Window) (*Source, error) {
	if w.End > 0 && w.End <= w.Start {
		return nil, fmt.Errorf("%w: %s: end %v is not after start %v", ErrOpenSource, path, w.End, w.Start)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenSource, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenSource, path)
	}

	s := &Source{
		path:    path,
		capture: capture,
		window:  w,
		info: Info{
			FPS: capture.Get(gocv.VideoCaptureFPS),
			Size: image.Pt(
				int(capture.Get(gocv.VideoCaptureFrameWidth)),
				int(capture.Get(gocv.VideoCaptureFrameHeight)),
			),
			FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		},
	}
	if s.info.FPS <= 0 || math.IsNaN(s.info.FPS) {
		capture.Close()
		return nil, fmt.Errorf("%w: %s: unknown frame rate", ErrOpenSource, path)
	}

	if w.Start > 0 {
		capture.Set(gocv.VideoCapturePosMsec, float64(w.Start.Milliseconds()))
		s.next = int(capture.Get(gocv.VideoCapturePosFrames))
	}
	return s, nil
}

func (s *Source) Info() Info {
	return s.info
}

// Expected estimates how many frames Next will return, or -1 if unknown.
func (s *Source) Expected() int {
	if s.info.FrameCount <= 0 {
		return -1
	}
	first := s.startFrame()
	last := s.info.FrameCount
	if s.window.End > 0 {
		end := int(math.Ceil(s.window.End.Seconds() * s.info.FPS))
		if end < last {
			last = end
		}
	}
	if last < first {
		return 0
	}
	return last - first
}

func (s *Source) startFrame() int {
	return int(s.window.Start.Seconds() * s.info.FPS)
}

// Next decodes the following frame. It returns io.EOF at the end of the stream
// or once the decoder passes the window end. The caller owns the frame.
func (s *Source) Next() (*Frame, error) {
	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		s.drained = true
		return nil, io.EOF
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: %s: frame %d", ErrDecode, s.path, s.next)
	}

	ts := time.Duration(s.capture.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	if s.window.End > 0 && ts > s.window.End {
		mat.Close()
		return nil, io.EOF
	}

	f := &Frame{Index: s.next, Timestamp: ts, Mat: mat}
	s.next++
	s.read++
	return f, nil
}

// Shortfall reports how many frames the container promised but the decoder
// never delivered. Containers often miscount by a frame or two, so small gaps
// report 0, as does a stream that has not reached its end yet.
func (s *Source) Shortfall() int {
	if !s.drained {
		return 0
	}
	return shortfall(s.Expected(), s.read)
}

func shortfall(expected, read int) int {
	if expected <= 0 || read >= expected {
		return 0
	}
	slack := expected / 100
	if slack < 2 {
		slack = 2
	}
	if missing := expected - read; missing > slack {
		return missing
	}
	return 0
}

func (s *Source) Close() error {
	return s.capture.Close()
}
